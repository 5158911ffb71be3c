// Package trigger turns storage notifications into analysis requests.
//
// Two envelopes are understood: Azure Event Grid arrays (including the
// subscription validation handshake) and CloudEvents carrying either an
// object URL or a bucket/key pair. Object names are percent-decoded here,
// once, and split into ContentID and DisplayName.
package trigger

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tendant/creative-analysis/pkg/creative"
	"github.com/tendant/creative-analysis/pkg/creative/analyzer"
)

// Event types handled by the trigger.
const (
	EventGridBlobCreated          = "Microsoft.Storage.BlobCreated"
	EventGridSubscriptionValidate = "Microsoft.EventGrid.SubscriptionValidationEvent"
)

// SkipReason explains why a notification did not produce a request.
type SkipReason string

const (
	SkipUnsupportedType SkipReason = "unsupported event type"
	SkipBackupObject    SkipReason = "derived backup object"
	SkipInvalidLocator  SkipReason = "invalid object locator"
)

var (
	// ErrMalformedEvent is returned when the envelope cannot be parsed.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrMissingValidationCode is returned for a validation event without a code.
	ErrMissingValidationCode = errors.New("validation code missing")
)

// Skipped records a notification that was intentionally ignored.
type Skipped struct {
	EventID   string
	EventType string
	Reason    SkipReason
	Detail    string
}

// Batch is the decoded form of one delivery.
type Batch struct {
	// ValidationCode is set when the delivery is a subscription handshake.
	// Requests is empty in that case.
	ValidationCode string

	Requests []analyzer.Request
	Skipped  []Skipped
}

// IsCreatedEvent reports whether eventType announces a new object.
func IsCreatedEvent(eventType string) bool {
	return strings.HasSuffix(eventType, "BlobCreated") || strings.Contains(eventType, "ObjectCreated")
}

// requestFor builds the analysis request for an object locator, or the
// reason it should be skipped.
func requestFor(loc creative.Locator) (analyzer.Request, SkipReason, bool) {
	if loc.Container == "" || loc.Name == "" {
		return analyzer.Request{}, SkipInvalidLocator, false
	}
	if creative.IsBackupObjectName(loc.Name) {
		return analyzer.Request{}, SkipBackupObject, false
	}
	return analyzer.NewRequest(loc), "", true
}

// EventGridEvent is one entry of an Event Grid schema delivery.
type EventGridEvent struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic,omitempty"`
	Subject     string          `json:"subject"`
	EventType   string          `json:"eventType"`
	EventTime   string          `json:"eventTime"`
	DataVersion string          `json:"dataVersion,omitempty"`
	Data        json.RawMessage `json:"data"`
}

type blobCreatedData struct {
	API         string `json:"api,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	BlobType    string `json:"blobType,omitempty"`
	URL         string `json:"url"`
}

type validationData struct {
	ValidationCode string `json:"validationCode"`
	ValidationURL  string `json:"validationUrl,omitempty"`
}

// DecodeEventGrid parses an Event Grid delivery. A validation event short
// circuits the batch; other events are either turned into requests or
// listed as skipped.
func DecodeEventGrid(body []byte) (*Batch, error) {
	var events []EventGridEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	batch := &Batch{}
	for _, ev := range events {
		switch {
		case ev.EventType == EventGridSubscriptionValidate:
			var data validationData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
			}
			if data.ValidationCode == "" {
				return nil, ErrMissingValidationCode
			}
			return &Batch{ValidationCode: data.ValidationCode}, nil
		case !IsCreatedEvent(ev.EventType):
			batch.skip(ev.ID, ev.EventType, SkipUnsupportedType, "")
		default:
			var data blobCreatedData
			if err := json.Unmarshal(ev.Data, &data); err != nil {
				batch.skip(ev.ID, ev.EventType, SkipInvalidLocator, err.Error())
				continue
			}
			batch.addURL(ev.ID, ev.EventType, data.URL)
		}
	}
	return batch, nil
}

func (b *Batch) skip(id, eventType string, reason SkipReason, detail string) {
	b.Skipped = append(b.Skipped, Skipped{EventID: id, EventType: eventType, Reason: reason, Detail: detail})
}

func (b *Batch) addURL(id, eventType, url string) {
	loc, err := creative.LocatorFromURL(url)
	if err != nil {
		b.skip(id, eventType, SkipInvalidLocator, err.Error())
		return
	}
	b.add(id, eventType, loc)
}

func (b *Batch) add(id, eventType string, loc creative.Locator) {
	req, reason, ok := requestFor(loc)
	if !ok {
		b.skip(id, eventType, reason, loc.String())
		return
	}
	b.Requests = append(b.Requests, req)
}
