package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainassets "motorent/internal/domain/assets"
	domainbooking "motorent/internal/domain/booking"
	"motorent/internal/domain/shared/daterange"
	"motorent/internal/domain/shared/money"
)

const (
	bookingsCollection   = "agg_booking"
	assetLocksCollection = "booking_asset_locks"
)

// writeConflictCode is returned when two transactions touch the same document.
const writeConflictCode = 112

type BookingRepository struct {
	col   *mongo.Collection
	locks *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection), locks: db.Collection(assetLocksCollection)}
}

// EnsureIndexes creates the lookup indexes and the unique order reference index.
func (r *BookingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "asset_id", Value: 1}, {Key: "status", Value: 1}, {Key: "occupied_start", Value: 1}}},
		{Keys: bson.D{{Key: "renter_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		{
			Keys:    bson.D{{Key: "order_ref", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"order_ref": bson.M{"$exists": true}}),
		},
	})
	return err
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *BookingRepository) ByOrderRef(ctx context.Context, orderRef string) (*domainbooking.Booking, error) {
	if orderRef == "" {
		return nil, domainbooking.ErrBookingNotFound
	}
	return r.findOne(ctx, bson.M{"order_ref": orderRef})
}

// Create bumps the asset's lock document first so concurrent creates on the same
// asset conflict inside their transactions, then checks overlap and inserts.
func (r *BookingRepository) Create(ctx context.Context, b *domainbooking.Booking) error {
	_, err := r.locks.UpdateOne(ctx,
		bson.M{"_id": string(b.AssetID)},
		bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"touched_at": time.Now().UTC().UnixMilli()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return mapWriteErr(err)
	}

	occupied := b.Range.Occupied()
	n, err := r.col.CountDocuments(ctx, bson.M{
		"asset_id":       string(b.AssetID),
		"status":         bson.M{"$in": blockingStatuses()},
		"occupied_start": bson.M{"$lt": occupied.End.UnixMilli()},
		"occupied_end":   bson.M{"$gt": occupied.Start.UnixMilli()},
	})
	if err != nil {
		return mapWriteErr(err)
	}
	if n > 0 {
		return domainbooking.ErrAssetUnavailable
	}

	b.Version = 1
	if _, err := r.col.InsertOne(ctx, newBookingDocument(b)); err != nil {
		b.Version = 0
		return mapWriteErr(err)
	}
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	doc.Version = b.Version + 1
	update := bson.M{"$set": doc}
	if doc.OrderRef == "" {
		update["$unset"] = bson.M{"order_ref": ""}
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": doc.ID, "version": b.Version}, update)
	if err != nil {
		return mapWriteErr(err)
	}
	if res.MatchedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"renter_id": renterID})
}

func (r *BookingRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"owner_id": ownerID})
}

func (r *BookingRepository) ListBlockingByAsset(ctx context.Context, assetID domainassets.AssetID) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"asset_id": string(assetID), "status": bson.M{"$in": blockingStatuses()}})
}

func (r *BookingRepository) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"status": string(domainbooking.StatusPending), "created_at": bson.M{"$lt": cutoff.UnixMilli()}})
}

func (r *BookingRepository) findOne(ctx context.Context, filter bson.M) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) find(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	cur, err := r.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*domainbooking.Booking{}
	for cur.Next(ctx) {
		var doc bookingDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

func blockingStatuses() []string {
	return []string{string(domainbooking.StatusPending), string(domainbooking.StatusConfirmed)}
}

// mapWriteErr folds duplicate keys and transaction write conflicts into
// ErrConcurrentUpdate so the command can be retried.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(domainbooking.ErrConcurrentUpdate, err)
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(writeConflictCode)) {
		return errors.Join(domainbooking.ErrConcurrentUpdate, err)
	}
	return err
}

type bookingDocument struct {
	ID            string `bson:"_id"`
	AssetID       string `bson:"asset_id"`
	AssetTitle    string `bson:"asset_title"`
	RenterID      string `bson:"renter_id"`
	OwnerID       string `bson:"owner_id"`
	Start         int64  `bson:"start"`
	End           int64  `bson:"end"`
	OccupiedStart int64  `bson:"occupied_start"`
	OccupiedEnd   int64  `bson:"occupied_end"`
	TotalAmount   int64  `bson:"total_amount"`
	Currency      string `bson:"currency"`
	Status        string `bson:"status"`
	OrderRef      string `bson:"order_ref,omitempty"`
	PaymentRef    string `bson:"payment_ref,omitempty"`
	FailureReason string `bson:"failure_reason,omitempty"`
	CreatedAt     int64  `bson:"created_at"`
	UpdatedAt     int64  `bson:"updated_at"`
	Version       int64  `bson:"version"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	occupied := b.Range.Occupied()
	return bookingDocument{
		ID:            string(b.ID),
		AssetID:       string(b.AssetID),
		AssetTitle:    b.AssetTitle,
		RenterID:      b.RenterID,
		OwnerID:       b.OwnerID,
		Start:         b.Range.Start.UnixMilli(),
		End:           b.Range.End.UnixMilli(),
		OccupiedStart: occupied.Start.UnixMilli(),
		OccupiedEnd:   occupied.End.UnixMilli(),
		TotalAmount:   b.TotalPrice.Amount,
		Currency:      b.TotalPrice.Currency,
		Status:        string(b.Status),
		OrderRef:      b.OrderRef,
		PaymentRef:    b.PaymentRef,
		FailureReason: b.FailureReason,
		CreatedAt:     b.CreatedAt.UnixMilli(),
		UpdatedAt:     b.UpdatedAt.UnixMilli(),
		Version:       b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:            domainbooking.BookingID(d.ID),
		AssetID:       domainassets.AssetID(d.AssetID),
		AssetTitle:    d.AssetTitle,
		RenterID:      d.RenterID,
		OwnerID:       d.OwnerID,
		Range:         daterange.DateRange{Start: timestampToTime(d.Start), End: timestampToTime(d.End)},
		TotalPrice:    money.Money{Amount: d.TotalAmount, Currency: d.Currency},
		Status:        domainbooking.Status(d.Status),
		OrderRef:      d.OrderRef,
		PaymentRef:    d.PaymentRef,
		FailureReason: d.FailureReason,
		CreatedAt:     timestampToTime(d.CreatedAt),
		UpdatedAt:     timestampToTime(d.UpdatedAt),
		Version:       d.Version,
	}
}

func timestampToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
