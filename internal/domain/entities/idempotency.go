package entities

import "time"

// IdempotencyRecord maps a client-supplied request id to the serialized
// response already returned for it. Inserted in the same transaction as the
// state change; replays return the stored response without side effects.
type IdempotencyRecord struct {
	requestID string
	response  []byte
	createdAt time.Time
}

// NewIdempotencyRecord builds a record pending insertion.
func NewIdempotencyRecord(requestID string, response []byte) *IdempotencyRecord {
	return &IdempotencyRecord{
		requestID: requestID,
		response:  response,
		createdAt: time.Now().UTC(),
	}
}

// ReconstructIdempotencyRecord hydrates a record from stored data.
func ReconstructIdempotencyRecord(requestID string, response []byte, createdAt time.Time) *IdempotencyRecord {
	return &IdempotencyRecord{requestID: requestID, response: response, createdAt: createdAt}
}

func (r *IdempotencyRecord) RequestID() string   { return r.requestID }
func (r *IdempotencyRecord) Response() []byte    { return r.response }
func (r *IdempotencyRecord) CreatedAt() time.Time { return r.createdAt }
