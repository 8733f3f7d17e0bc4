package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/real-rm/golog"
	"github.com/real-rm/gomongo"
	"github.com/real-rm/linkup/internal/constants"
	"github.com/real-rm/linkup/internal/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on gomongo collections.
type MongoStore struct {
	logger   *golog.Logger
	retry    retryConfig
	users    *gomongo.MongoCollection
	rooms    *gomongo.MongoCollection
	members  *gomongo.MongoCollection
	messages *gomongo.MongoCollection
	threads  *gomongo.MongoCollection
	usage    *gomongo.MongoCollection
	reports  *gomongo.MongoCollection
	logs     *gomongo.MongoCollection
	settings *gomongo.MongoCollection
	friends  *gomongo.MongoCollection
}

// NewMongoStore binds every collection of dbName.
func NewMongoStore(m *gomongo.Mongo, dbName string, logger *golog.Logger) *MongoStore {
	return &MongoStore{
		logger:   logger,
		retry:    defaultRetryConfig,
		users:    m.Coll(dbName, constants.CollUsers),
		rooms:    m.Coll(dbName, constants.CollRooms),
		members:  m.Coll(dbName, constants.CollMembers),
		messages: m.Coll(dbName, constants.CollMessages),
		threads:  m.Coll(dbName, constants.CollSupportThreads),
		usage:    m.Coll(dbName, constants.CollAIUsage),
		reports:  m.Coll(dbName, constants.CollReports),
		logs:     m.Coll(dbName, constants.CollSystemLogs),
		settings: m.Coll(dbName, constants.CollSystemConfig),
		friends:  m.Coll(dbName, constants.CollFriendRequests),
	}
}

// observe records the duration of one store operation.
func observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.MongoDBOperationDuration.With(prometheus.Labels{"operation": operation}).Observe(time.Since(start).Seconds())
	}
}

func (s *MongoStore) do(ctx context.Context, operation string, fn func() error) error {
	return retryOperation(ctx, s.logger, s.retry, operation, fn)
}

func opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, constants.DefaultContextTimeout)
}

// EnsureIndexes creates the indexes backing the router's hot queries.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.MongoIndexTimeout)
	defer cancel()

	plan := []struct {
		coll    *gomongo.MongoCollection
		indexes []mongo.IndexModel
	}{
		{s.messages, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "timestamp", Value: -1}},
				Options: options.Index().SetName(constants.IndexMessagesRoomTime),
			},
			{
				Keys:    bson.D{{Key: "reply_to_id", Value: 1}},
				Options: options.Index().SetName(constants.IndexMessagesReplyTo),
			},
		}},
		{s.members, []mongo.IndexModel{{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetName(constants.IndexMembersRoomUser),
		}}},
		{s.usage, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "dt", Value: 1}, {Key: "user_id", Value: 1}},
				Options: options.Index().SetName(constants.IndexUsageDayUser),
			},
			{
				Keys:    bson.D{{Key: "dt", Value: 1}, {Key: "room_id", Value: 1}},
				Options: options.Index().SetName(constants.IndexUsageDayRoom),
			},
		}},
		{s.threads, []mongo.IndexModel{{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetName(constants.IndexSupportThreadsUser),
		}}},
		{s.friends, []mongo.IndexModel{
			{
				Keys:    bson.D{{Key: "from_id", Value: 1}},
				Options: options.Index().SetName(constants.IndexFriendsFrom),
			},
			{
				Keys:    bson.D{{Key: "to_id", Value: 1}},
				Options: options.Index().SetName(constants.IndexFriendsTo),
			},
		}},
	}

	for _, p := range plan {
		// No else needed: early return pattern (guard clause)
		if _, err := p.coll.CreateIndexes(ctx, p.indexes); err != nil {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	s.logger.Info("MongoDB indexes created successfully",
		"indexes", []string{
			constants.IndexMessagesRoomTime, constants.IndexMessagesReplyTo, constants.IndexMembersRoomUser,
			constants.IndexUsageDayUser, constants.IndexUsageDayRoom, constants.IndexSupportThreadsUser,
			constants.IndexFriendsFrom, constants.IndexFriendsTo,
		},
	)
	return nil
}

// Ping checks connectivity for readiness probes.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.users.Ping(ctx)
}

func (s *MongoStore) findOne(ctx context.Context, coll *gomongo.MongoCollection, operation string, filter bson.M, out interface{}) error {
	defer observe(operation)()
	ctx, cancel := opContext(ctx)
	defer cancel()

	err := s.do(ctx, operation, func() error {
		return coll.FindOne(ctx, filter).Decode(out)
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	return nil
}

// updateOne applies update to the single document matching filter.
// A zero match is reported as ErrNotFound.
func (s *MongoStore) updateOne(ctx context.Context, coll *gomongo.MongoCollection, operation string, filter, update bson.M) error {
	defer observe(operation)()
	ctx, cancel := opContext(ctx)
	defer cancel()

	var result *mongo.UpdateResult
	err := s.do(ctx, operation, func() error {
		var opErr error
		result, opErr = coll.UpdateOne(ctx, filter, update)
		return opErr
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	// No else needed: early return pattern (guard clause)
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) updateMany(ctx context.Context, coll *gomongo.MongoCollection, operation string, filter, update bson.M) (int64, error) {
	defer observe(operation)()
	ctx, cancel := opContext(ctx)
	defer cancel()

	var result *mongo.UpdateResult
	err := s.do(ctx, operation, func() error {
		var opErr error
		result, opErr = coll.UpdateMany(ctx, filter, update)
		return opErr
	})
	if err != nil {
		return 0, fmt.Errorf("failed to %s: %w", operation, err)
	}
	return result.ModifiedCount, nil
}

// upsert sets fields on the document matching filter, creating it if needed.
func (s *MongoStore) upsert(ctx context.Context, coll *gomongo.MongoCollection, operation string, filter, update bson.M) error {
	defer observe(operation)()
	ctx, cancel := opContext(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.do(ctx, operation, func() error {
		var out bson.M
		return coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	return nil
}

func (s *MongoStore) insertOne(ctx context.Context, coll *gomongo.MongoCollection, operation string, doc interface{}) error {
	defer observe(operation)()
	ctx, cancel := opContext(ctx)
	defer cancel()

	err := s.do(ctx, operation, func() error {
		_, opErr := coll.InsertOne(ctx, doc)
		return opErr
	})
	if err != nil {
		return fmt.Errorf("failed to %s: %w", operation, err)
	}
	return nil
}

func (s *MongoStore) findMessages(ctx context.Context, operation string, filter bson.M, opts gomongo.QueryOptions) ([]*Message, error) {
	defer observe(operation)()
	ctx, cancel := opContext(ctx)
	defer cancel()

	cursor, err := s.messages.Find(ctx, filter, opts)
	// No else needed: early return pattern (guard clause)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}
	defer cursor.Close(ctx)

	out := make([]*Message, 0)
	for cursor.Next(ctx) {
		var m Message
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		out = append(out, &m)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

// GetUser loads one user by id.
func (s *MongoStore) GetUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}
	var u User
	if err := s.findOne(ctx, s.users, "get_user", bson.M{"id": userID}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUsers loads several users keyed by id. Unknown ids are absent from the result.
func (s *MongoStore) GetUsers(ctx context.Context, userIDs []string) (map[string]*User, error) {
	out := make(map[string]*User, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	defer observe("get_users")()
	ctx, cancel := opContext(ctx)
	defer cancel()

	cursor, err := s.users.Find(ctx, bson.M{"id": bson.M{"$in": userIDs}}, gomongo.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var u User
		if err := cursor.Decode(&u); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		out[u.ID] = &u
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

// SetOnline persists presence and last_seen.
func (s *MongoStore) SetOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	return s.updateOne(ctx, s.users, "set_online",
		bson.M{"id": userID},
		bson.M{"$set": bson.M{"is_online": online, "last_seen": at}})
}

// ListStaff returns the ids of every superuser and admin.
func (s *MongoStore) ListStaff(ctx context.Context) ([]string, error) {
	defer observe("list_staff")()
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{"$or": bson.A{
		bson.M{"is_superuser": true},
		bson.M{"role": constants.RoleAdmin},
	}}
	cursor, err := s.users.Find(ctx, filter, gomongo.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	defer cursor.Close(ctx)

	ids := make([]string, 0)
	for cursor.Next(ctx) {
		var u User
		if err := cursor.Decode(&u); err != nil {
			return nil, fmt.Errorf("failed to decode user: %w", err)
		}
		ids = append(ids, u.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ids, nil
}

// AcceptedFriends returns the ids on the other side of the user's accepted friend requests.
func (s *MongoStore) AcceptedFriends(ctx context.Context, userID string) ([]string, error) {
	defer observe("accepted_friends")()
	ctx, cancel := opContext(ctx)
	defer cancel()

	filter := bson.M{
		"status": "accepted",
		"$or":    bson.A{bson.M{"from_id": userID}, bson.M{"to_id": userID}},
	}
	cursor, err := s.friends.Find(ctx, filter, gomongo.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer cursor.Close(ctx)

	ids := make([]string, 0)
	for cursor.Next(ctx) {
		var fr FriendRequest
		if err := cursor.Decode(&fr); err != nil {
			return nil, fmt.Errorf("failed to decode friend request: %w", err)
		}
		if fr.FromID == userID {
			ids = append(ids, fr.ToID)
		} else {
			ids = append(ids, fr.FromID)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ids, nil
}

// GetRoom loads one room by id.
func (s *MongoStore) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	if roomID == "" {
		return nil, ErrInvalidID
	}
	var r Room
	if err := s.findOne(ctx, s.rooms, "get_room", bson.M{"id": roomID}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// TouchRoom bumps updated_at. Reserved rooms without a document are not an error.
func (s *MongoStore) TouchRoom(ctx context.Context, roomID string, at time.Time) error {
	err := s.updateOne(ctx, s.rooms, "touch_room",
		bson.M{"id": roomID},
		bson.M{"$set": bson.M{"updated_at": at}})
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// RoomMembers returns the user ids of every member of the room.
func (s *MongoStore) RoomMembers(ctx context.Context, roomID string) ([]string, error) {
	defer observe("room_members")()
	ctx, cancel := opContext(ctx)
	defer cancel()

	cursor, err := s.members.Find(ctx, bson.M{"room_id": roomID}, gomongo.QueryOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list room members: %w", err)
	}
	defer cursor.Close(ctx)

	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for cursor.Next(ctx) {
		var m Membership
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode membership: %w", err)
		}
		if _, dup := seen[m.UserID]; dup {
			continue
		}
		seen[m.UserID] = struct{}{}
		ids = append(ids, m.UserID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return ids, nil
}

// EnsureMember inserts the membership when it is missing and leaves an existing one untouched.
func (s *MongoStore) EnsureMember(ctx context.Context, roomID, userID, role string) error {
	if roomID == "" || userID == "" {
		return ErrInvalidID
	}
	return s.upsert(ctx, s.members, "ensure_member",
		bson.M{"room_id": roomID, "user_id": userID},
		bson.M{"$setOnInsert": bson.M{"role": role, "joined_at": time.Now().UTC()}})
}

// InsertMessage persists a new message.
func (s *MongoStore) InsertMessage(ctx context.Context, msg *Message) error {
	if msg == nil || msg.ID == "" {
		return ErrInvalidID
	}
	if msg.DeletedByUsers == nil {
		msg.DeletedByUsers = []string{}
	}
	return s.insertOne(ctx, s.messages, "insert_message", msg)
}

// GetMessage loads one message by id.
func (s *MongoStore) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	if messageID == "" {
		return nil, ErrInvalidID
	}
	var m Message
	if err := s.findOne(ctx, s.messages, "get_message", bson.M{"id": messageID}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// EditMessage replaces the content and marks the message edited.
func (s *MongoStore) EditMessage(ctx context.Context, messageID, content string, at time.Time) error {
	return s.updateOne(ctx, s.messages, "edit_message",
		bson.M{"id": messageID},
		bson.M{"$set": bson.M{"content": content, "is_edited": true, "edited_at": at}})
}

// RecallMessage replaces the content with the placeholder and marks the message recalled.
func (s *MongoStore) RecallMessage(ctx context.Context, messageID, placeholder string) error {
	return s.updateOne(ctx, s.messages, "recall_message",
		bson.M{"id": messageID},
		bson.M{"$set": bson.M{"content": placeholder, "is_recalled": true}})
}

// UpdateReplyPreviews rewrites reply_to_content on every reply to parentID.
func (s *MongoStore) UpdateReplyPreviews(ctx context.Context, parentID, content string) (int64, error) {
	return s.updateMany(ctx, s.messages, "update_reply_previews",
		bson.M{"reply_to_id": parentID},
		bson.M{"$set": bson.M{"reply_to_content": content}})
}

// HideMessage hides the message from one user only.
func (s *MongoStore) HideMessage(ctx context.Context, messageID, userID string) error {
	return s.updateOne(ctx, s.messages, "hide_message",
		bson.M{"id": messageID},
		bson.M{"$addToSet": bson.M{"deleted_by_users": userID}})
}

// SetPinned stores the pin flag.
func (s *MongoStore) SetPinned(ctx context.Context, messageID string, pinned bool) error {
	return s.updateOne(ctx, s.messages, "set_pinned",
		bson.M{"id": messageID},
		bson.M{"$set": bson.M{"is_pinned": pinned}})
}

// SetReactions replaces the reaction map.
func (s *MongoStore) SetReactions(ctx context.Context, messageID string, reactions map[string][]string) error {
	if reactions == nil {
		reactions = map[string][]string{}
	}
	return s.updateOne(ctx, s.messages, "set_reactions",
		bson.M{"id": messageID},
		bson.M{"$set": bson.M{"reactions": reactions}})
}

// MarkSeen marks one message of the room as seen.
func (s *MongoStore) MarkSeen(ctx context.Context, roomID, messageID string) error {
	return s.updateOne(ctx, s.messages, "mark_seen",
		bson.M{"id": messageID, "room_id": roomID},
		bson.M{"$set": bson.M{"status": constants.StatusSeen}})
}

// MarkRoomSeen marks every unseen message of the room not sent by the reader.
func (s *MongoStore) MarkRoomSeen(ctx context.Context, roomID, readerID string) (int64, error) {
	return s.updateMany(ctx, s.messages, "mark_room_seen",
		bson.M{
			"room_id":   roomID,
			"sender_id": bson.M{"$ne": readerID},
			"status":    bson.M{"$ne": constants.StatusSeen},
		},
		bson.M{"$set": bson.M{"status": constants.StatusSeen}})
}

// RecentMessages returns up to q.Limit messages of the room, newest first.
func (s *MongoStore) RecentMessages(ctx context.Context, q MessageQuery) ([]*Message, error) {
	filter := bson.M{"room_id": q.RoomID}
	if q.ExcludeID != "" {
		filter["id"] = bson.M{"$ne": q.ExcludeID}
	}
	if q.Participant != "" {
		filter["$or"] = bson.A{
			bson.M{"sender_id": q.Participant},
			bson.M{"receiver_id": q.Participant},
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = constants.ContextMessageCount
	}
	return s.findMessages(ctx, "recent_messages", filter, gomongo.QueryOptions{
		Sort:  bson.D{{Key: "timestamp", Value: -1}},
		Limit: int64(limit),
	})
}

// LastHumanMessages returns the newest non-bot message of every sender in the room.
func (s *MongoStore) LastHumanMessages(ctx context.Context, roomID string) ([]*Message, error) {
	defer observe("last_human_messages")()
	ctx, cancel := context.WithTimeout(ctx, constants.LongContextTimeout)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"room_id":   roomID,
			"is_bot":    bson.M{"$ne": true},
			"sender_id": bson.M{"$nin": bson.A{nil, ""}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": "$sender_id",
			"doc": bson.M{"$first": "$$ROOT"},
		}}},
		{{Key: "$replaceRoot", Value: bson.M{"newRoot": "$doc"}}},
	}

	cursor, err := s.messages.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to find last messages: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]*Message, 0)
	for cursor.Next(ctx) {
		var m Message
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		out = append(out, &m)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return out, nil
}

func (s *MongoStore) exists(ctx context.Context, operation string, filter bson.M) (bool, error) {
	msgs, err := s.findMessages(ctx, operation, filter, gomongo.QueryOptions{Limit: 1})
	if err != nil {
		return false, err
	}
	return len(msgs) > 0, nil
}

// HasReplyAfter reports whether the user was answered in the room after t.
// Bot messages without a receiver count as answers to everyone.
func (s *MongoStore) HasReplyAfter(ctx context.Context, roomID, userID string, t time.Time) (bool, error) {
	return s.exists(ctx, "has_reply_after", bson.M{
		"room_id":   roomID,
		"timestamp": bson.M{"$gt": t},
		"$or": bson.A{
			bson.M{"receiver_id": userID},
			bson.M{"is_bot": true, "receiver_id": bson.M{"$in": bson.A{nil, ""}}},
		},
	})
}

// HasRecentStaffReply reports whether a human other than the user addressed them since t.
func (s *MongoStore) HasRecentStaffReply(ctx context.Context, roomID, userID string, since time.Time) (bool, error) {
	return s.exists(ctx, "has_recent_staff_reply", bson.M{
		"room_id":     roomID,
		"receiver_id": userID,
		"is_bot":      bson.M{"$ne": true},
		"sender_id":   bson.M{"$nin": bson.A{nil, "", userID}},
		"timestamp":   bson.M{"$gte": since},
	})
}

// GetThread loads the user's support thread.
func (s *MongoStore) GetThread(ctx context.Context, userID string) (*SupportThread, error) {
	var th SupportThread
	if err := s.findOne(ctx, s.threads, "get_thread", bson.M{"user_id": userID}, &th); err != nil {
		return nil, err
	}
	return &th, nil
}

// SetThreadStatus upserts the user's support thread with a new status.
func (s *MongoStore) SetThreadStatus(ctx context.Context, userID, username, status string, at time.Time) error {
	if userID == "" {
		return ErrInvalidID
	}
	set := bson.M{"status": status, "updated_at": at}
	if username != "" {
		set["username"] = username
	}
	return s.upsert(ctx, s.threads, "set_thread_status",
		bson.M{"user_id": userID},
		bson.M{"$set": set})
}

// InsertUsage records one AI generation.
func (s *MongoStore) InsertUsage(ctx context.Context, rec *AIUsage) error {
	return s.insertOne(ctx, s.usage, "insert_usage", rec)
}

// CountUsage counts successful generations for one user or room on q.Day.
func (s *MongoStore) CountUsage(ctx context.Context, q UsageQuery) (int, error) {
	defer observe("count_usage")()
	ctx, cancel := opContext(ctx)
	defer cancel()

	match := bson.M{"dt": q.Day, "status": constants.UsageSuccess}
	if q.UserID != "" {
		match["user_id"] = q.UserID
	}
	if q.RoomID != "" {
		match["room_id"] = q.RoomID
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$count", Value: "n"}},
	}

	var n int
	err := s.do(ctx, "count_usage", func() error {
		cursor, opErr := s.usage.Aggregate(ctx, pipeline)
		if opErr != nil {
			return opErr
		}
		defer cursor.Close(ctx)

		n = 0
		if cursor.Next(ctx) {
			var res struct {
				N int `bson:"n"`
			}
			if decErr := cursor.Decode(&res); decErr != nil {
				return decErr
			}
			n = res.N
		}
		return cursor.Err()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return n, nil
}

// InsertSystemLog writes an operational log entry.
func (s *MongoStore) InsertSystemLog(ctx context.Context, entry *SystemLog) error {
	return s.insertOne(ctx, s.logs, "insert_system_log", entry)
}

// InsertReport persists a moderation report.
func (s *MongoStore) InsertReport(ctx context.Context, r *Report) error {
	if r == nil || r.ID == "" {
		return ErrInvalidID
	}
	return s.insertOne(ctx, s.reports, "insert_report", r)
}

// GetSystemConfig loads the runtime settings document.
func (s *MongoStore) GetSystemConfig(ctx context.Context) (*SystemConfig, error) {
	var cfg SystemConfig
	if err := s.findOne(ctx, s.settings, "get_system_config", bson.M{"type": constants.SystemConfigType}, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
