package util

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ValidateNotEmpty checks if a string is not empty and returns an error if it is.
//
// Example:
//
//	if err := util.ValidateNotEmpty(roomID, "room ID"); err != nil {
//	    return err
//	}
func ValidateNotEmpty(value, fieldName string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateRange checks if an integer is within a specified range (inclusive).
func ValidateRange(value, min, max int, fieldName string) error {
	if value < min || value > max {
		return fmt.Errorf("%s must be between %d and %d, got %d", fieldName, min, max, value)
	}
	return nil
}

// ValidateMinLength checks if a string meets minimum length requirement.
func ValidateMinLength(value string, minLength int, fieldName string) error {
	if len(value) < minLength {
		return fmt.Errorf("%s must be at least %d characters, got %d", fieldName, minLength, len(value))
	}
	return nil
}

// ValidatePositive checks if a number is positive.
func ValidatePositive(value int, fieldName string) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive, got %d", fieldName, value)
	}
	return nil
}

// RuneLength counts characters rather than bytes, so limits behave the same
// for Vietnamese and ASCII text.
func RuneLength(s string) int {
	return utf8.RuneCountInString(s)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// MaxFileURLLength is the maximum allowed length for file URLs.
const MaxFileURLLength = 2048

// privateNetworks contains CIDR ranges for private/internal IPs.
var privateNetworks = func() []*net.IPNet {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		"169.254.0.0/16",
		"::1/128",
		"fc00::/7",
	}
	var nets []*net.IPNet
	for _, cidr := range cidrs {
		_, ipNet, _ := net.ParseCIDR(cidr)
		if ipNet != nil {
			nets = append(nets, ipNet)
		}
	}
	return nets
}()

// ValidateFileURL validates an attachment reference before it is stored.
// Paths served by the upload service ("/uploads/...") are accepted as-is;
// absolute URLs must be https and must not point at a private IP literal.
func ValidateFileURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	if len(rawURL) > MaxFileURLLength {
		return fmt.Errorf("URL exceeds maximum length of %d characters", MaxFileURLLength)
	}

	if strings.HasPrefix(rawURL, "/") && !strings.HasPrefix(rawURL, "//") {
		if strings.Contains(rawURL, "..") {
			return errors.New("relative file path must not contain '..'")
		}
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if strings.ToLower(u.Scheme) != "https" {
		return fmt.Errorf("URL scheme %q is not allowed; only https is permitted", u.Scheme)
	}

	hostname := u.Hostname()
	if hostname == "" {
		return errors.New("URL must have a hostname")
	}

	if ip := net.ParseIP(hostname); ip != nil {
		for _, ipNet := range privateNetworks {
			if ipNet.Contains(ip) {
				return fmt.Errorf("URL host %q resolves to a private/internal IP address", hostname)
			}
		}
	}

	return nil
}
