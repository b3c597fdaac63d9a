package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const defaultCollection = "payment_idempotency"

// FirestoreStore shares claims across gateway replicas.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

type FirestoreOption func(*FirestoreStore)

func WithCollection(name string) FirestoreOption {
	return func(s *FirestoreStore) {
		if name != "" {
			s.collection = name
		}
	}
}

func WithMaxAttempts(n int) FirestoreOption {
	return func(s *FirestoreStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	s := &FirestoreStore{client: client, collection: defaultCollection, maxAttempts: 5}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(documentID(key))
}

func (s *FirestoreStore) Claim(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Outcome, Entry, error) {
	now = now.UTC()
	ref := s.doc(key)

	var (
		outcome Outcome
		entry   Entry
	)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var doc claimDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			existing := doc.entry()
			if !existing.expired(now) {
				if existing.Fingerprint != fingerprint {
					return ErrKeyReused
				}
				entry = existing
				outcome = OutcomeInFlight
				if existing.Done {
					outcome = OutcomeReplay
				}
				return nil
			}
		}
		entry = claimedEntry(key, fingerprint, now, normalizeTTL(ttl))
		outcome = OutcomeClaimed
		return tx.Set(ref, docFromEntry(entry))
	}, firestore.MaxAttempts(s.maxAttempts))
	if err != nil {
		return 0, Entry{}, err
	}
	return outcome, entry, nil
}

func (s *FirestoreStore) Complete(ctx context.Context, key, fingerprint string, resp Captured, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	ref := s.doc(key)
	header := storableHeader(resp.Header)
	body := append([]byte(nil), resp.Body...)

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		entry := claimedEntry(key, fingerprint, now, 0)
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var doc claimDoc
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrKeyReused
			}
			entry = doc.entry()
		case status.Code(err) != codes.NotFound:
			return err
		}
		entry.Done = true
		entry.Status = resp.Status
		entry.Header = header
		entry.Body = body
		entry.ExpiresAt = now.Add(normalizeTTL(ttl))
		return tx.Set(ref, docFromEntry(entry))
	}, firestore.MaxAttempts(s.maxAttempts))
}

func (s *FirestoreStore) Abandon(ctx context.Context, key string) error {
	_, err := s.doc(key).Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

func (s *FirestoreStore) Sweep(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 200
	}
	docs, err := s.client.Collection(s.collection).
		Where("expires_at", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil || len(docs) == 0 {
		return 0, err
	}
	batch := s.client.Batch()
	for _, d := range docs {
		batch.Delete(d.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, err
	}
	return len(docs), nil
}

type claimDoc struct {
	Key         string              `firestore:"key"`
	Fingerprint string              `firestore:"fingerprint"`
	Done        bool                `firestore:"done"`
	Status      int                 `firestore:"response_status"`
	Header      map[string][]string `firestore:"response_header"`
	Body        []byte              `firestore:"response_body"`
	ClaimedAt   time.Time           `firestore:"claimed_at"`
	ExpiresAt   time.Time           `firestore:"expires_at"`
}

func docFromEntry(e Entry) claimDoc {
	return claimDoc(e)
}

func (d claimDoc) entry() Entry {
	return Entry(d)
}
