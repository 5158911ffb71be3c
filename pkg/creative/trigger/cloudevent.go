package trigger

import (
	"fmt"
	"net/http"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"
	"github.com/tendant/creative-analysis/pkg/creative"
)

// objectCreatedData covers the payload shapes we accept: Azure's blob URL
// and S3/MinIO style bucket and key.
type objectCreatedData struct {
	URL    string `json:"url,omitempty"`
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key,omitempty"`
}

// DecodeCloudEvent converts one CloudEvent into a batch of at most one request.
func DecodeCloudEvent(e cloudevents.Event) (*Batch, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	batch := &Batch{}
	if e.Type() == EventGridSubscriptionValidate {
		var data validationData
		if err := e.DataAs(&data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		if data.ValidationCode == "" {
			return nil, ErrMissingValidationCode
		}
		batch.ValidationCode = data.ValidationCode
		return batch, nil
	}
	if !IsCreatedEvent(e.Type()) {
		batch.skip(e.ID(), e.Type(), SkipUnsupportedType, "")
		return batch, nil
	}

	var data objectCreatedData
	if err := e.DataAs(&data); err != nil {
		batch.skip(e.ID(), e.Type(), SkipInvalidLocator, err.Error())
		return batch, nil
	}

	switch {
	case data.URL != "":
		batch.addURL(e.ID(), e.Type(), data.URL)
	case data.Bucket != "" && data.Key != "":
		name, err := creative.DecodeObjectName(data.Key)
		if err != nil {
			batch.skip(e.ID(), e.Type(), SkipInvalidLocator, err.Error())
			break
		}
		batch.add(e.ID(), e.Type(), creative.Locator{Container: data.Bucket, Name: name})
	default:
		batch.skip(e.ID(), e.Type(), SkipInvalidLocator, "event carries neither url nor bucket/key")
	}
	return batch, nil
}

// DecodeCloudEventRequest reads a CloudEvent in binary or structured mode
// from an HTTP request.
func DecodeCloudEventRequest(r *http.Request) (*Batch, error) {
	e, err := cehttp.NewEventFromHTTPRequest(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return DecodeCloudEvent(*e)
}

// IsCloudEventRequest reports whether r carries a CloudEvent rather than an
// Event Grid schema array.
func IsCloudEventRequest(r *http.Request) bool {
	if r.Header.Get("ce-specversion") != "" {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), cloudevents.ApplicationCloudEventsJSON)
}
