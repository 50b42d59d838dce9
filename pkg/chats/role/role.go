// Package role defines the four conversation roles the chat API exchanges:
// system, user, assistant, and tool.
package role

// Role identifies the sender of a message. The constants below are the exact
// strings of the OpenAI-style wire format, so they cross the HTTP surface
// unchanged.
type Role string

const (
	System    Role = "system"
	User      Role = "user"
	Assistant Role = "assistant"
	Tool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case System, User, Assistant, Tool:
		return true
	}
	return false
}

// String returns the underlying string value of the role.
func (r Role) String() string {
	return string(r)
}
