package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"payflow/internal/core/domain"
	"payflow/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// In-memory implementations of the persistence ports. Reads hand out copies
// and writes mutate the stored row under the repo lock, so handlers running
// in parallel never share struct memory with the stores.

var (
	_ ports.UserRepository        = (*inMemoryUserRepo)(nil)
	_ ports.MerchantRepository    = (*inMemoryMerchantRepo)(nil)
	_ ports.ApiKeyRepository      = (*inMemoryApiKeyRepo)(nil)
	_ ports.OrderRepository       = (*inMemoryOrderRepo)(nil)
	_ ports.PaymentRepository     = (*inMemoryPaymentRepo)(nil)
	_ ports.RefundRepository      = (*inMemoryRefundRepo)(nil)
	_ ports.IdempotencyRepository = (*inMemoryIdempotencyRepo)(nil)
	_ ports.WebhookRepository     = (*inMemoryWebhookRepo)(nil)
	_ ports.WebhookLogRepository  = (*inMemoryWebhookLogRepo)(nil)
	_ ports.TransactionRepository = (*inMemoryTransactionRepo)(nil)
	_ ports.StatsRepository       = (*inMemoryStatsRepo)(nil)
	_ ports.AuditRepository       = (*inMemoryAuditRepo)(nil)
	_ ports.DBTransactor          = (*lockingTransactor)(nil)
)

// --- Transactor ---

// lockingTransactor serializes every transaction on a single mutex, the
// in-memory analog of row locking: two checkout attempts cannot interleave
// between their locked re-read and their commit.
type lockingTransactor struct {
	mu sync.Mutex
}

func newLockingTransactor() *lockingTransactor {
	return &lockingTransactor{}
}

func (t *lockingTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{mu: &t.mu}, nil
}

// memTx is a no-op pgx.Tx that releases the transactor lock exactly once.
// Services defer a rollback after committing, and that second call must not
// unlock twice.
type memTx struct {
	mu   *sync.Mutex
	once sync.Once
}

func (t *memTx) release() { t.once.Do(t.mu.Unlock) }

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(ctx context.Context) error          { t.release(); return nil }
func (t *memTx) Rollback(ctx context.Context) error        { t.release(); return nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *memTx) Conn() *pgx.Conn { return nil }

// --- Users ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return fmt.Errorf("duplicate email")
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found")
	}
	u.PasswordHash = passwordHash
	return nil
}

// --- Merchants ---

type inMemoryMerchantRepo struct {
	mu        sync.RWMutex
	merchants map[uuid.UUID]*domain.Merchant
}

func newInMemoryMerchantRepo() *inMemoryMerchantRepo {
	return &inMemoryMerchantRepo{merchants: make(map[uuid.UUID]*domain.Merchant)}
}

func (r *inMemoryMerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.merchants[m.ID] = &cp
	return nil
}

func (r *inMemoryMerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *inMemoryMerchantRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.merchants {
		if m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryMerchantRepo) count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.merchants))
}

// --- API keys ---

type inMemoryApiKeyRepo struct {
	mu   sync.RWMutex
	keys map[string]*domain.ApiKey
}

func newInMemoryApiKeyRepo() *inMemoryApiKeyRepo {
	return &inMemoryApiKeyRepo{keys: make(map[string]*domain.ApiKey)}
}

func (r *inMemoryApiKeyRepo) Create(ctx context.Context, key *domain.ApiKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *key
	r.keys[key.KeyID] = &cp
	return nil
}

func (r *inMemoryApiKeyRepo) GetByKeyID(ctx context.Context, keyID string) (*domain.ApiKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[keyID]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (r *inMemoryApiKeyRepo) Revoke(ctx context.Context, merchantID uuid.UUID, keyID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k, ok := r.keys[keyID]
	if !ok || k.MerchantID != merchantID || !k.Active {
		return false, nil
	}
	k.Active = false
	return true, nil
}

func (r *inMemoryApiKeyRepo) TouchLastUsed(ctx context.Context, keyID string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[keyID]; ok {
		t := usedAt
		k.LastUsedAt = &t
	}
	return nil
}

// --- Orders ---

type inMemoryOrderRepo struct {
	mu     sync.RWMutex
	orders map[uuid.UUID]*domain.Order
}

func newInMemoryOrderRepo() *inMemoryOrderRepo {
	return &inMemoryOrderRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (r *inMemoryOrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
	return nil
}

func (r *inMemoryOrderRepo) GetByRef(ctx context.Context, orderRef string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, o := range r.orders {
		if o.OrderRef == orderRef {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (r *inMemoryOrderRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, orderRef string) (*domain.Order, error) {
	return r.GetByRef(ctx, orderRef)
}

func (r *inMemoryOrderRepo) List(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Order
	for _, o := range r.orders {
		if o.MerchantID == merchantID {
			result = append(result, *o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *inMemoryOrderRepo) RecordAttempt(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = status
	o.Attempts++
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryOrderRepo) SetStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order not found")
	}
	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *inMemoryOrderRepo) count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.orders))
}

// --- Payments ---

type inMemoryPaymentRepo struct {
	mu       sync.RWMutex
	payments map[uuid.UUID]*domain.Payment
	ids      []uuid.UUID // insertion order, oldest first
}

func newInMemoryPaymentRepo() *inMemoryPaymentRepo {
	return &inMemoryPaymentRepo{payments: make(map[uuid.UUID]*domain.Payment)}
}

func (r *inMemoryPaymentRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.payments[p.ID] = &cp
	r.ids = append(r.ids, p.ID)
	return nil
}

func (r *inMemoryPaymentRepo) GetByRef(ctx context.Context, paymentRef string) (*domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.PaymentRef == paymentRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryPaymentRepo) GetByRefForUpdate(ctx context.Context, tx pgx.Tx, paymentRef string) (*domain.Payment, error) {
	return r.GetByRef(ctx, paymentRef)
}

func (r *inMemoryPaymentRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Payment
	for i := len(r.ids) - 1; i >= 0; i-- {
		if p := r.payments[r.ids[i]]; p.OrderID == orderID {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (r *inMemoryPaymentRepo) ExistsLiveForOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status != domain.PaymentStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (r *inMemoryPaymentRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.PaymentStatus, capturedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	p.Status = status
	if capturedAt != nil {
		t := *capturedAt
		p.CapturedAt = &t
	}
	return nil
}

func (r *inMemoryPaymentRepo) ApplyRefund(ctx context.Context, tx pgx.Tx, id uuid.UUID, amountRefunded int64, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return fmt.Errorf("payment not found")
	}
	p.AmountRefunded = amountRefunded
	p.Status = status
	return nil
}

func (r *inMemoryPaymentRepo) ListFlagged(ctx context.Context, limit int) ([]domain.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Payment
	for i := len(r.ids) - 1; i >= 0 && len(result) < limit; i-- {
		if p := r.payments[r.ids[i]]; p.IsFlagged {
			result = append(result, *p)
		}
	}
	return result, nil
}

func (r *inMemoryPaymentRepo) History(ctx context.Context, payerKey string, since time.Time) (*domain.FraudHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := &domain.FraudHistory{}
	for _, p := range r.payments {
		if p.PayerKey != payerKey || p.CreatedAt.Before(since) {
			continue
		}
		h.Count++
		h.TotalAmount += p.Amount
		h.Amounts = append(h.Amounts, p.Amount)
	}
	return h, nil
}

func (r *inMemoryPaymentRepo) totals() (count, capturedVolume int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		count++
		if p.Status == domain.PaymentStatusCaptured {
			capturedVolume += p.Amount
		}
	}
	return count, capturedVolume
}

// --- Refunds ---

type inMemoryRefundRepo struct {
	mu      sync.RWMutex
	refunds []*domain.Refund
}

func newInMemoryRefundRepo() *inMemoryRefundRepo {
	return &inMemoryRefundRepo{}
}

func (r *inMemoryRefundRepo) Create(ctx context.Context, tx pgx.Tx, refund *domain.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *refund
	r.refunds = append(r.refunds, &cp)
	return nil
}

func (r *inMemoryRefundRepo) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]domain.Refund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Refund
	for i := len(r.refunds) - 1; i >= 0; i-- {
		if r.refunds[i].PaymentID == paymentID {
			result = append(result, *r.refunds[i])
		}
	}
	return result, nil
}

func (r *inMemoryRefundRepo) GetByIdempotencyKey(ctx context.Context, paymentID uuid.UUID, key string) (*domain.Refund, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rf := range r.refunds {
		if rf.PaymentID == paymentID && rf.IdempotencyKey != nil && *rf.IdempotencyKey == key {
			cp := *rf
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryRefundRepo) SumProcessed(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum int64
	for _, rf := range r.refunds {
		if rf.PaymentID == paymentID && rf.Status == domain.RefundStatusProcessed {
			sum += rf.Amount
		}
	}
	return sum, nil
}

func (r *inMemoryRefundRepo) processedCount() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, rf := range r.refunds {
		if rf.Status == domain.RefundStatusProcessed {
			n++
		}
	}
	return n
}

// --- Idempotency records ---

type inMemoryIdempotencyRepo struct {
	mu      sync.RWMutex
	records map[string]*domain.IdempotencyRecord
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{records: make(map[string]*domain.IdempotencyRecord)}
}

func idemKey(merchantID uuid.UUID, key string) string {
	return merchantID.String() + "|" + key
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := idemKey(record.MerchantID, record.Key)
	if _, exists := r.records[k]; exists {
		// Same shape of failure as the primary key violation the real table
		// raises for a concurrent duplicate.
		return fmt.Errorf("duplicate idempotency key")
	}
	cp := *record
	r.records[k] = &cp
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, merchantID uuid.UUID, key string) (*domain.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[idemKey(merchantID, key)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// --- Webhook outbox ---

type inMemoryWebhookRepo struct {
	mu     sync.Mutex
	nextID int64
	events []*domain.WebhookEvent
}

func newInMemoryWebhookRepo() *inMemoryWebhookRepo {
	return &inMemoryWebhookRepo{}
}

func (r *inMemoryWebhookRepo) Enqueue(ctx context.Context, tx pgx.Tx, e *domain.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	cp := *e
	r.events = append(r.events, &cp)
	return nil
}

func (r *inMemoryWebhookRepo) ClaimNext(ctx context.Context, lease time.Duration) (*domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	leaseCutoff := now.Add(-lease)
	var due *domain.WebhookEvent
	for _, e := range r.events {
		if e.Status != domain.WebhookStatusPending || e.NextAttemptAt.After(now) {
			continue
		}
		if e.LockedAt != nil && !e.LockedAt.Before(leaseCutoff) {
			continue
		}
		if due == nil || e.NextAttemptAt.Before(due.NextAttemptAt) {
			due = e
		}
	}
	if due == nil {
		return nil, nil
	}
	due.Attempts++
	locked := now
	due.LockedAt = &locked
	cp := *due
	return &cp, nil
}

func (r *inMemoryWebhookRepo) MarkDelivered(ctx context.Context, id int64, responseCode int, responseBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(id)
	if e == nil {
		return fmt.Errorf("webhook event not found")
	}
	e.Status = domain.WebhookStatusDelivered
	e.LockedAt = nil
	e.LastResponseCode = &responseCode
	e.LastResponseBody = &responseBody
	now := time.Now()
	e.DeliveredAt = &now
	return nil
}

func (r *inMemoryWebhookRepo) Reschedule(ctx context.Context, id int64, nextAttemptAt time.Time, responseCode *int, responseBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(id)
	if e == nil {
		return fmt.Errorf("webhook event not found")
	}
	e.Status = domain.WebhookStatusPending
	e.LockedAt = nil
	e.NextAttemptAt = nextAttemptAt
	e.LastResponseCode = responseCode
	e.LastResponseBody = &responseBody
	return nil
}

func (r *inMemoryWebhookRepo) MarkFailed(ctx context.Context, id int64, responseCode *int, responseBody string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.find(id)
	if e == nil {
		return fmt.Errorf("webhook event not found")
	}
	e.Status = domain.WebhookStatusFailed
	e.LockedAt = nil
	e.LastResponseCode = responseCode
	e.LastResponseBody = &responseBody
	return nil
}

func (r *inMemoryWebhookRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.WebhookEvent
	for i := len(r.events) - 1; i >= 0 && len(result) < limit; i-- {
		if r.events[i].MerchantID == merchantID {
			result = append(result, *r.events[i])
		}
	}
	return result, nil
}

// find returns the stored event; callers hold r.mu.
func (r *inMemoryWebhookRepo) find(id int64) *domain.WebhookEvent {
	for _, e := range r.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// --- Webhook delivery logs ---

type inMemoryWebhookLogRepo struct {
	mu   sync.RWMutex
	logs []*domain.WebhookLog
}

func newInMemoryWebhookLogRepo() *inMemoryWebhookLogRepo {
	return &inMemoryWebhookLogRepo{}
}

func (r *inMemoryWebhookLogRepo) Create(ctx context.Context, log *domain.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *log
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *inMemoryWebhookLogRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID, limit int) ([]domain.WebhookLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.WebhookLog
	for i := len(r.logs) - 1; i >= 0 && len(result) < limit; i-- {
		if r.logs[i].MerchantID == merchantID {
			result = append(result, *r.logs[i])
		}
	}
	return result, nil
}

// --- Legacy transactions ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]*domain.Transaction
	ids          []uuid.UUID
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[uuid.UUID]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.transactions[t.ID] = &cp
	r.ids = append(r.ids, t.ID)
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transactions {
		if t.UserID == userID && t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for i := len(r.ids) - 1; i >= 0 && len(result) < limit; i-- {
		if t := r.transactions[r.ids[i]]; t.UserID == userID {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (r *inMemoryTransactionRepo) ListAll(ctx context.Context, limit int) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for i := len(r.ids) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, *r.transactions[r.ids[i]])
	}
	return result, nil
}

func (r *inMemoryTransactionRepo) ListFlagged(ctx context.Context, limit int) ([]domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for i := len(r.ids) - 1; i >= 0 && len(result) < limit; i-- {
		if t := r.transactions[r.ids[i]]; t.IsFlagged {
			result = append(result, *t)
		}
	}
	return result, nil
}

func (r *inMemoryTransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction not found")
	}
	t.Status = status
	return nil
}

func (r *inMemoryTransactionRepo) History(ctx context.Context, userID uuid.UUID, since time.Time) (*domain.FraudHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := &domain.FraudHistory{}
	for _, t := range r.transactions {
		if t.UserID != userID || t.CreatedAt.Before(since) {
			continue
		}
		h.Count++
		h.TotalAmount += t.AmountPaise
		h.Amounts = append(h.Amounts, t.AmountPaise)
	}
	return h, nil
}

func (r *inMemoryTransactionRepo) totals() ports.TransactionStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var s ports.TransactionStats
	for _, t := range r.transactions {
		s.TotalTransactions++
		s.TotalAmountPaise += t.AmountPaise
		switch t.Status {
		case domain.TransactionStatusSuccess:
			s.SuccessCount++
		case domain.TransactionStatusFailed:
			s.FailedCount++
		}
		if t.IsFlagged {
			s.FlaggedCount++
		}
	}
	return s
}

// --- Stats ---

// inMemoryStatsRepo derives the admin aggregates from the live stores.
type inMemoryStatsRepo struct {
	merchants *inMemoryMerchantRepo
	orders    *inMemoryOrderRepo
	payments  *inMemoryPaymentRepo
	refunds   *inMemoryRefundRepo
	txns      *inMemoryTransactionRepo
}

func (r *inMemoryStatsRepo) GatewayStats(ctx context.Context) (*ports.GatewayStats, error) {
	payments, volume := r.payments.totals()
	return &ports.GatewayStats{
		TotalMerchants:   r.merchants.count(),
		TotalOrders:      r.orders.count(),
		TotalPayments:    payments,
		TotalVolumePaise: volume,
		TotalRefunds:     r.refunds.processedCount(),
	}, nil
}

func (r *inMemoryStatsRepo) TransactionStats(ctx context.Context) (*ports.TransactionStats, error) {
	s := r.txns.totals()
	return &s, nil
}

// --- Audit ---

type inMemoryAuditRepo struct {
	mu   sync.Mutex
	logs []domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}
