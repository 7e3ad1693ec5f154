package querycache

import (
	"encoding/json"
	"fmt"
)

// NoArgs is the argument type of endpoints that take no arguments.
type NoArgs struct{}

// Key identifies a cache entry: the endpoint name plus the serialized arguments.
type Key struct {
	Endpoint string
	Args     string
}

func (k Key) String() string {
	return k.Endpoint + "(" + k.Args + ")"
}

// makeKey serializes args with encoding/json, whose output is stable for the
// same logical value (struct field order, sorted map keys).
func makeKey(endpoint string, args any) (Key, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return Key{}, ErrArgs(endpoint, err)
	}
	return Key{Endpoint: endpoint, Args: string(b)}, nil
}

// Tag labels cache entries for invalidation. An empty ID makes it a type-wide tag.
type Tag struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// TypeTag returns a type-wide tag.
func TypeTag(typ string) Tag {
	return Tag{Type: typ}
}

// IDTag returns a tag for a single resource.
func IDTag(typ, id string) Tag {
	return Tag{Type: typ, ID: id}
}

func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return fmt.Sprintf("%s:%s", t.Type, t.ID)
}

// matches reports whether invalidating t hits an entry that provided p.
// Either side being type-wide is enough once the types agree, so lists that
// provide the type-wide tag refresh whenever one of their items changes.
func (t Tag) matches(p Tag) bool {
	if t.Type != p.Type {
		return false
	}
	return t.ID == "" || p.ID == "" || t.ID == p.ID
}
