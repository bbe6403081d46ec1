package activity

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"assetdex/pkg/fault"
	"assetdex/services/catalog"
)

//go:embed rules.yaml
var rulesYAML []byte

// unknownActor is the sentinel actor id when no identity field resolves.
const unknownActor = "Unknown"

// RawRecord is one audit-log record as returned by an AuditLogReader.
// Detail carries the pre-parsed payload when the reader has one;
// otherwise Payload holds the embedded JSON string.
type RawRecord struct {
	EventName string
	EventTime time.Time
	Source    string
	Detail    map[string]any
	Payload   string
}

type extractor struct {
	path  string
	parts []string
}

func (e extractor) lookup(payload map[string]any) string {
	node := any(payload)
	for _, part := range e.parts {
		m, ok := node.(map[string]any)
		if !ok {
			return ""
		}
		node = m[part]
	}
	s, _ := node.(string)
	return s
}

// Compactor converts raw audit records into MinimalEvents, or drops
// them. Resource extraction is driven by the ordered path table in
// rules.yaml; adding an asset type is a data change there.
type Compactor struct {
	source string
	rules  map[catalog.AssetType][]extractor
}

// NewCompactor builds a Compactor that keeps only records originating
// from the given audit source.
func NewCompactor(source string) (*Compactor, error) {
	if source == "" {
		return nil, fmt.Errorf("audit source is required")
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(rulesYAML, &raw); err != nil {
		return nil, fmt.Errorf("parse extraction rules: %w", err)
	}

	rules := make(map[catalog.AssetType][]extractor, len(raw))
	for typeName, paths := range raw {
		at, err := catalog.ParseAssetType(typeName)
		if err != nil {
			return nil, fmt.Errorf("extraction rules: %w", err)
		}
		extractors := make([]extractor, 0, len(paths))
		for _, p := range paths {
			extractors = append(extractors, extractor{path: p, parts: strings.Split(p, ".")})
		}
		rules[at] = extractors
	}

	return &Compactor{source: source, rules: rules}, nil
}

// Compact returns the compacted form of rec, or nil when the record
// should be dropped: wrong source, no resolvable timestamp, or no
// resolvable resource id. An unparsable payload is reported as a
// MalformedEventError so the caller can skip the record and continue.
func (c *Compactor) Compact(rec RawRecord, eventName string) (*MinimalEvent, error) {
	payload := rec.Detail
	if payload == nil && rec.Payload != "" {
		if err := json.Unmarshal([]byte(rec.Payload), &payload); err != nil {
			return nil, &fault.MalformedEventError{EventName: eventName, Err: err}
		}
	}
	if payload == nil {
		payload = map[string]any{}
	}

	if source := recordSource(rec, payload); source != c.source {
		return nil, nil
	}

	ts := rec.EventTime
	if ts.IsZero() {
		if s, _ := payload["eventTime"].(string); s != "" {
			parsed, err := time.Parse(time.RFC3339, s)
			if err != nil {
				return nil, &fault.MalformedEventError{EventName: eventName, Err: err}
			}
			ts = parsed
		}
	}
	if ts.IsZero() {
		return nil, nil
	}

	at, ok := assetTypeForEvent(eventName)
	if !ok {
		return nil, nil
	}

	resource := ""
	for _, ex := range c.rules[at] {
		if v := ex.lookup(payload); v != "" {
			resource = lastSegment(v, "/")
			break
		}
	}
	if resource == "" {
		return nil, nil
	}

	return &MinimalEvent{
		T: ts.UTC().Format(time.RFC3339),
		E: eventName,
		U: resolveActor(payload),
		R: resource,
	}, nil
}

func recordSource(rec RawRecord, payload map[string]any) string {
	if rec.Source != "" {
		return rec.Source
	}
	s, _ := payload["eventSource"].(string)
	return s
}

// resolveActor tries identity fields in priority order: federated
// identity (session-issuer user name plus the segment after the last
// colon of the principal id), then the direct user name, then the last
// ARN segment, then the Unknown sentinel.
func resolveActor(payload map[string]any) string {
	identity, _ := payload["userIdentity"].(map[string]any)
	if identity == nil {
		return unknownActor
	}

	principalID, _ := identity["principalId"].(string)
	if issuer := sessionIssuerName(identity); issuer != "" && strings.Contains(principalID, ":") {
		return issuer + "/" + lastSegment(principalID, ":")
	}

	if name, _ := identity["userName"].(string); name != "" {
		return name
	}

	if arn, _ := identity["arn"].(string); arn != "" {
		return lastSegment(arn, "/")
	}

	return unknownActor
}

func sessionIssuerName(identity map[string]any) string {
	sessionCtx, _ := identity["sessionContext"].(map[string]any)
	if sessionCtx == nil {
		return ""
	}
	issuer, _ := sessionCtx["sessionIssuer"].(map[string]any)
	if issuer == nil {
		return ""
	}
	name, _ := issuer["userName"].(string)
	return name
}

func lastSegment(s, sep string) string {
	if idx := strings.LastIndex(s, sep); idx >= 0 {
		return s[idx+len(sep):]
	}
	return s
}
