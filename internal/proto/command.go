package proto

import "strings"

// CommandKind describes what a line asks the server to do.
type CommandKind int

const (
	// CommandChat is plain text for the sender's current room.
	CommandChat CommandKind = iota
	CommandLogin
	CommandRegister
	CommandCreateGroup
	CommandJoinGroup
	CommandKick
	CommandBan
	CommandPromote
	CommandDeleteGroup
	CommandUsers
	CommandMsg
	CommandJoin
)

var commandNames = map[string]CommandKind{
	"/login":       CommandLogin,
	"/register":    CommandRegister,
	"/creategroup": CommandCreateGroup,
	"/joingroup":   CommandJoinGroup,
	"/kick":        CommandKick,
	"/ban":         CommandBan,
	"/promote":     CommandPromote,
	"/deletegroup": CommandDeleteGroup,
	"/users":       CommandUsers,
	"/msg":         CommandMsg,
	"/join":        CommandJoin,
}

// Command is a parsed inbound line.
type Command struct {
	Kind CommandKind
	// Name is the leading token for slash commands, e.g. "/kick".
	Name string
	// Args holds up to two whitespace-delimited arguments after Name.
	Args []string
	// Text is the verbatim message body of /msg.
	Text string
	// Raw is the original line.
	Raw string
}

// Arg returns argument i or "" if absent.
func (c Command) Arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Parse classifies one inbound line. Lines that do not start with a known
// command token are CommandChat, including unknown slash commands.
func Parse(line string) Command {
	cmd := Command{Kind: CommandChat, Raw: line}

	fields := strings.Fields(line)
	if len(fields) == 0 || !strings.HasPrefix(line, "/") {
		return cmd
	}
	kind, ok := commandNames[fields[0]]
	if !ok {
		return cmd
	}
	cmd.Kind = kind
	cmd.Name = fields[0]

	if kind == CommandMsg {
		// /msg target text... keeps the text verbatim after the target token.
		rest := strings.TrimLeft(strings.TrimPrefix(line, fields[0]), " \t")
		target, text := rest, ""
		if i := strings.IndexAny(rest, " \t"); i >= 0 {
			target, text = rest[:i], rest[i+1:]
		}
		if target != "" {
			cmd.Args = []string{target}
		}
		cmd.Text = text
		return cmd
	}

	args := fields[1:]
	if len(args) > 2 {
		args = args[:2]
	}
	cmd.Args = args
	return cmd
}
