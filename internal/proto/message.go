// Package proto defines the newline-delimited text protocol spoken between
// chat clients and the server.
package proto

import (
	"fmt"
	"strings"
)

// Server-to-client line prefixes.
const (
	PrefixPrivate     = "PRIVATE:"
	PrefixPrivateSelf = "PRIVATE_SELF:"
	PrefixUserList    = "USER_LIST:"
	PrefixServer      = "SERVER:"
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Flatten replaces embedded line breaks with spaces so text is one line.
func Flatten(s string) string {
	return lineBreaks.Replace(s)
}

// SplitLines splits a transport payload into protocol lines, dropping the
// \r of CRLF endings.
func SplitLines(payload string) []string {
	lines := strings.Split(payload, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Private formats an incoming direct message for its recipient.
func Private(sender, text string) string {
	return PrefixPrivate + sender + ":" + text
}

// PrivateSelf formats the echo of a direct message to its sender.
func PrivateSelf(target, text string) string {
	return PrefixPrivateSelf + target + ":" + text
}

// UserList formats the /users reply.
func UserList(names []string) string {
	return PrefixUserList + strings.Join(names, ",")
}

// Chat formats a plain room message.
func Chat(name, text string) string {
	return name + ": " + text
}

// Notice formats an informational or error reply: "SERVER: <text>".
func Notice(format string, args ...any) string {
	return PrefixServer + " " + fmt.Sprintf(format, args...)
}

// Event formats a join/leave style room event: "SERVER:<text>".
func Event(format string, args ...any) string {
	return PrefixServer + fmt.Sprintf(format, args...)
}
