package models

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OwnerKind discriminates which partition of the forest a node belongs to.
type OwnerKind string

const (
	OwnerKindUser   OwnerKind = "user"
	OwnerKindTenant OwnerKind = "tenant"
)

func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerKindUser, OwnerKindTenant:
		return true
	}
	return false
}

// Owner is a polymorphic reference: the id is interpreted against Kind.
type Owner struct {
	ID   primitive.ObjectID `bson:"id" json:"id"`
	Kind OwnerKind          `bson:"kind" json:"kind"`
}

func (o Owner) Validate() error {
	if o.ID.IsZero() {
		return fmt.Errorf("owner id is required")
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("unknown owner kind %q", o.Kind)
	}
	return nil
}

func (o Owner) Equal(other Owner) bool {
	return o.ID == other.ID && o.Kind == other.Kind
}
