package creative

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RecordSchemaVersion is the version of the serialized AnalysisRecord
// envelope. Bump it when a field changes meaning.
const RecordSchemaVersion = 1

type recordEnvelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	Record        *AnalysisRecord `json:"record"`
}

// EncodeRecord serializes a record inside a versioned envelope.
func EncodeRecord(record *AnalysisRecord) ([]byte, error) {
	if record == nil || record.ContentID == "" {
		return nil, ErrMissingContentID
	}
	return json.Marshal(recordEnvelope{SchemaVersion: RecordSchemaVersion, Record: record})
}

// DecodeRecord parses an envelope produced by EncodeRecord. Unknown fields,
// a foreign schema version or a record that violates the status invariants
// yield ErrCorruptRecord instead of silently defaulting.
func DecodeRecord(data []byte) (*AnalysisRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env recordEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if env.SchemaVersion != RecordSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorruptRecord, env.SchemaVersion)
	}
	if env.Record == nil || env.Record.ContentID == "" {
		return nil, fmt.Errorf("%w: missing record body", ErrCorruptRecord)
	}
	if err := validateRecord(env.Record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return env.Record, nil
}

func validateRecord(r *AnalysisRecord) error {
	if _, err := ParseCategory(string(r.Category)); err != nil {
		return err
	}
	for i, c := range r.ValidationChecks {
		switch c.Status {
		case CheckPass, CheckFail, CheckWarn, CheckNotApplicable:
		default:
			return fmt.Errorf("check %d has invalid status %q", i, c.Status)
		}
	}
	switch r.Status {
	case StatusProcessing:
		return nil
	case StatusCompleted, StatusError:
		if len(r.ValidationChecks) == 0 {
			return fmt.Errorf("finished record without checks")
		}
		if (r.Status == StatusError) != r.HasFailures() {
			return fmt.Errorf("status %s disagrees with checks", r.Status)
		}
		return nil
	default:
		return fmt.Errorf("invalid status %q", r.Status)
	}
}

// MergeSideMetadata merges update into current. Fields of update always win
// except an empty ObjectName, which keeps the stored one.
func MergeSideMetadata(current, update *SideMetadata) *SideMetadata {
	if current == nil {
		out := *update
		return &out
	}
	out := *current
	out.IsCtv = update.IsCtv
	if update.ObjectName != "" {
		out.ObjectName = update.ObjectName
	}
	return &out
}
