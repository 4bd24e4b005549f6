package com

import "github.com/rs/xid"

// Uid is a sortable globally unique id for clients and tracked calls.
type Uid struct{ xid.ID }

func NewUid() Uid { return Uid{xid.New()} }

// Short is the compact log form, the first and last three characters.
func (u Uid) Short() string {
	s := u.String()
	return s[:3] + "." + s[len(s)-3:]
}
