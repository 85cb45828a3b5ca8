// internal/services/reference.go
package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/models"
)

// ExternalReference is the association stored in the processor's
// externalReference field: "kind=<kind>|affiliate=<uuid>[|order=<uuid>]".
type ExternalReference struct {
	Kind        models.PaymentKind
	AffiliateID uuid.UUID
	OrderID     *uuid.UUID
}

func (r ExternalReference) String() string {
	s := fmt.Sprintf("kind=%s|affiliate=%s", r.Kind, r.AffiliateID)
	if r.OrderID != nil {
		s += "|order=" + r.OrderID.String()
	}
	return s
}

// ParseExternalReference also accepts a bare affiliate uuid, which older
// checkouts sent for membership fees.
func ParseExternalReference(raw string) (*ExternalReference, error) {
	const op = "services.ParseExternalReference"

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperr.Validation(op, "external_reference", "external reference is empty")
	}

	if id, err := uuid.Parse(raw); err == nil {
		return &ExternalReference{Kind: models.PaymentKindMembership, AffiliateID: id}, nil
	}

	ref := &ExternalReference{}
	for _, part := range strings.Split(raw, "|") {
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, apperr.Validation(op, "external_reference", fmt.Sprintf("malformed segment %q", part))
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch key {
		case "kind":
			ref.Kind = models.PaymentKind(strings.ToLower(value))
		case "affiliate":
			id, err := uuid.Parse(value)
			if err != nil {
				return nil, apperr.Validation(op, "external_reference", "affiliate is not a uuid")
			}
			ref.AffiliateID = id
		case "order":
			id, err := uuid.Parse(value)
			if err != nil {
				return nil, apperr.Validation(op, "external_reference", "order is not a uuid")
			}
			ref.OrderID = &id
		}
	}

	if ref.AffiliateID == uuid.Nil {
		return nil, apperr.Validation(op, "external_reference", "affiliate is required")
	}
	if !ref.Kind.Valid() {
		return nil, apperr.Validation(op, "external_reference", fmt.Sprintf("unknown payment kind %q", ref.Kind))
	}
	return ref, nil
}
