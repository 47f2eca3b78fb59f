package identity

import (
	"fmt"
	"strings"

	"github.com/LeventeLantos/whatsapp-autoreply/internal/model"
)

// NumberingPolicy selects how Argentine mobile numbers are rewritten before
// sending. Inbound webhooks and the outbound API have disagreed about the
// "9" mobile digit, so the direction is a deployment setting.
type NumberingPolicy string

const (
	// PolicyInsert rewrites 54XXXXXXXXXX to 549XXXXXXXXXX.
	PolicyInsert NumberingPolicy = "insert"
	// PolicyStrip rewrites 549XXXXXXXXXX to 54XXXXXXXXXX.
	PolicyStrip NumberingPolicy = "strip"
	PolicyNone  NumberingPolicy = "none"
)

const (
	countryPrefix = "54"
	mobilePrefix  = "549"
)

func ParsePolicy(s string) (NumberingPolicy, error) {
	switch p := NumberingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyInsert, PolicyStrip, PolicyNone:
		return p, nil
	case "":
		return PolicyInsert, nil
	default:
		return "", fmt.Errorf("identity: unknown numbering policy %q", s)
	}
}

type Resolver struct {
	policy NumberingPolicy
}

func NewResolver(policy NumberingPolicy) *Resolver {
	return &Resolver{policy: policy}
}

func (r *Resolver) Policy() NumberingPolicy {
	return r.policy
}

// Resolve picks the platform-verified wa_id when present, else the raw
// from field, and canonicalizes it.
func (r *Resolver) Resolve(ev model.InboundEvent) model.CanonicalAddress {
	raw := ev.SenderID
	if raw == "" {
		raw = ev.RawFrom
	}
	return r.Canonicalize(raw)
}

// Canonicalize is total and idempotent for every policy. Inputs outside the
// Argentine pattern pass through unchanged.
func (r *Resolver) Canonicalize(raw string) model.CanonicalAddress {
	switch r.policy {
	case PolicyInsert:
		if strings.HasPrefix(raw, countryPrefix) && !strings.HasPrefix(raw, mobilePrefix) {
			return model.CanonicalAddress(mobilePrefix + raw[len(countryPrefix):])
		}
	case PolicyStrip:
		// Area codes never start with 9; leaving 5499... alone keeps the
		// rewrite idempotent.
		if strings.HasPrefix(raw, mobilePrefix) && !strings.HasPrefix(raw[len(mobilePrefix):], "9") {
			return model.CanonicalAddress(countryPrefix + raw[len(mobilePrefix):])
		}
	}
	return model.CanonicalAddress(raw)
}
