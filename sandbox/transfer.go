package sandbox

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/layer-3/onewallet/adapters/rest"
	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
	"github.com/layer-3/onewallet/internal/zk"
)

// SuiDecimals is the number of decimal places between SUI and MIST.
const SuiDecimals = 9

// ReservationTTL is how long a sponsored gas reservation is held.
const ReservationTTL = time.Minute

type order struct {
	detail core.OrderDetail
	raw    []byte
	user   *user
}

type reservation struct {
	raw     []byte
	expires time.Time
	user    *user
}

func (b *Backend) ownsWallet(u *user, addr core.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return hasWallet(u, addr)
}

// CreateOrder drafts a native coin transfer paid from one of the sender's coins.
func (b *Backend) CreateOrder(ctx context.Context, sess *Session, req rest.CreateOrderRequest) (*rest.CreateOrderResponse, error) {
	from, err := core.ParseAddress(req.FromAddress)
	if err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}
	to, err := core.ParseAddress(req.ToAddress)
	if err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}
	if !b.ownsWallet(sess.user, from) {
		return nil, reject(CodeBadRequest, "address %s does not belong to the user", from)
	}
	coinType := req.CoinType
	if coinType == "" {
		coinType = SuiCoinType
	}
	if coinType != SuiCoinType {
		return nil, reject(CodeUnsupported, "coin type %s is not supported", coinType)
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, reject(CodeBadRequest, "invalid amount %q", req.Amount)
	}
	mist := amount.Shift(SuiDecimals)
	if !mist.IsInteger() || !mist.BigInt().IsUint64() {
		return nil, reject(CodeBadRequest, "amount %s has too many decimals", req.Amount)
	}

	var gas *core.Coin
	for _, c := range b.ledger.Coins(from, SuiCoinType) {
		if c.Balance >= mist.BigInt().Uint64()+b.cfg.GasBudget && (gas == nil || c.Balance > gas.Balance) {
			c := c
			gas = &c
		}
	}
	if gas == nil {
		return nil, reject(CodeBalance, "insufficient balance for %s SUI", amount)
	}
	ref, err := sui.CoinRef(*gas)
	if err != nil {
		return nil, reject(CodeInternal, "%v", err)
	}

	pt := sui.NewBuilder()
	pt.PaySui(to, mist.BigInt().Uint64())
	raw := sui.NewProgrammable(from, []sui.ObjectRef{ref}, pt.Finish(), b.cfg.GasBudget, b.ledger.GasPrice()).Bytes()
	hash := sui.TransactionDigest(raw)

	remark := ""
	if req.Remark != nil {
		remark = *req.Remark
	}
	b.mu.Lock()
	b.orders[hash] = &order{
		raw:  raw,
		user: sess.user,
		detail: core.OrderDetail{
			Hash:           hash,
			DID:            sess.user.DID,
			NickName:       sess.user.Nickname,
			Address:        from.String(),
			MerchantID:     b.cfg.MerchantID,
			TransferMethod: "ADDRESS",
			ToAddress:      to.String(),
			Currency:       coinType,
			Amount:         amount.String(),
			Status:         core.OrderStatusUnpaid,
			CreateTime:     b.now().UnixMilli(),
			Remark:         remark,
			Sender:         from.String(),
			Receiver:       to.String(),
		},
	}
	b.mu.Unlock()

	return &rest.CreateOrderResponse{Hash: hash, RawTransaction: sui.EncodeBase64(raw)}, nil
}

// SendTx verifies the zkLogin signature of an order and executes it.
func (b *Backend) SendTx(ctx context.Context, sess *Session, req rest.SendTxRequest) (*rest.SendTxResponse, error) {
	b.mu.Lock()
	o, ok := b.orders[req.Hash]
	b.mu.Unlock()
	if !ok || o.user != sess.user {
		return nil, reject(CodeOrderNotFound, "order %s not found", req.Hash)
	}

	raw, err := sui.DecodeBase64(req.TxBytes)
	if err != nil || !bytes.Equal(raw, o.raw) {
		return nil, reject(CodeBadRequest, "transaction bytes do not match the order")
	}
	tx, err := b.verify(raw, req.UserSig)
	if err != nil {
		return nil, err
	}

	claimed, err := b.store.Claim(ctx, "sandbox:order:"+req.Hash, 0)
	if err != nil {
		return nil, reject(CodeInternal, "failed to lock order")
	}
	if !claimed {
		return nil, reject(CodeOrderState, "order %s was already submitted", req.Hash)
	}

	status := core.OrderStatusSuccess
	if err := b.ledger.Execute(tx); err != nil {
		b.log.WithError(err).WithField("hash", req.Hash).Warn("transaction failed")
		status = core.OrderStatusFail
	}

	b.mu.Lock()
	o.detail.Status = status
	o.detail.CompleteTime = b.now().UnixMilli()
	b.mu.Unlock()

	return &rest.SendTxResponse{Status: status, Hash: req.Hash}, nil
}

// verify checks a zkLogin signature over raw the way the network does.
func (b *Backend) verify(raw []byte, userSig string) (*sui.TransactionData, error) {
	tx, err := sui.DecodeTransactionData(raw)
	if err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}
	sig, err := sui.ParseZkLoginSignature([]byte(userSig))
	if err != nil {
		return nil, reject(CodeInvalidSignature, "%v", err)
	}
	if sig.MaxEpoch < b.ledger.Epoch() {
		return nil, reject(CodeEpochExpired, "signature expired at epoch %d", sig.MaxEpoch)
	}
	if tx.Expiration.Epoch != nil && *tx.Expiration.Epoch < b.ledger.Epoch() {
		return nil, reject(CodeEpochExpired, "transaction expired at epoch %d", *tx.Expiration.Epoch)
	}
	publicKey, err := sui.VerifyEd25519Signature(sig.UserSignature, raw)
	if err != nil {
		return nil, reject(CodeInvalidSignature, "%v", err)
	}

	if len(sig.Inputs.ProofPoints.A) == 0 {
		return nil, reject(CodeInvalidSignature, "missing proof points")
	}
	b.mu.Lock()
	proof, ok := b.proofs[sig.Inputs.ProofPoints.A[0]]
	b.mu.Unlock()
	if !ok || !bytes.Equal(proof.PublicKey, publicKey) || proof.MaxEpoch != sig.MaxEpoch || proof.Seed.String() != sig.Inputs.AddressSeed {
		return nil, reject(CodeInvalidSignature, "proof does not verify")
	}

	iss, err := zk.DecodeClaim(sig.Inputs.IssBase64Details, "iss")
	if err != nil {
		return nil, reject(CodeInvalidSignature, "%v", err)
	}
	address, err := zk.Address(iss, proof.Seed)
	if err != nil || address != tx.Sender {
		return nil, reject(CodeInvalidSignature, "signature is not from the sender")
	}
	return tx, nil
}

// QueryOrder returns the first order of the user matching q.
func (b *Backend) QueryOrder(ctx context.Context, sess *Session, q core.OrderQuery) (*core.OrderDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range b.sortedOrdersLocked(sess.user) {
		if q.Hash != "" && o.Hash != q.Hash {
			continue
		}
		if q.ToAddress != "" && !strings.EqualFold(o.ToAddress, q.ToAddress) {
			continue
		}
		if q.Currency != "" && o.Currency != q.Currency {
			continue
		}
		if len(q.StatusList) > 0 && !contains(q.StatusList, o.Status) {
			continue
		}
		if !within(o.CreateTime, q.BeginTime, q.EndTime) || !within(o.CompleteTime, q.CompleteBeginTime, q.CompleteEndTime) {
			continue
		}
		out := o
		return &out, nil
	}
	return nil, reject(CodeOrderNotFound, "no matching order")
}

// PageOrders lists the user's orders, newest first.
func (b *Backend) PageOrders(ctx context.Context, sess *Session, q core.OrderPageQuery) (*core.Page[core.OrderDetail], error) {
	if q.PageIndex < 1 || q.PageSize < 1 {
		return nil, reject(CodeBadRequest, "invalid page")
	}

	b.mu.Lock()
	all := b.sortedOrdersLocked(sess.user)
	b.mu.Unlock()

	var rows []core.OrderDetail
	for _, o := range all {
		if q.Address != "" && !strings.EqualFold(o.Address, q.Address) {
			continue
		}
		if q.TradeHash != "" && o.Hash != q.TradeHash {
			continue
		}
		if q.ToAddress != "" && !strings.EqualFold(o.ToAddress, q.ToAddress) {
			continue
		}
		if q.Currency != "" && o.Currency != q.Currency {
			continue
		}
		if len(q.StatusList) > 0 && !contains(q.StatusList, o.Status) {
			continue
		}
		if !within(o.CreateTime, q.BeginTime, q.EndTime) {
			continue
		}
		rows = append(rows, o)
	}

	page := &core.Page[core.OrderDetail]{TotalNum: int64(len(rows)), PageIndex: q.PageIndex, PageSize: q.PageSize, Rows: []core.OrderDetail{}}
	start := (q.PageIndex - 1) * q.PageSize
	if start < int64(len(rows)) {
		end := start + q.PageSize
		if end > int64(len(rows)) {
			end = int64(len(rows))
		}
		page.Rows = rows[start:end]
	}
	return page, nil
}

func (b *Backend) sortedOrdersLocked(u *user) []core.OrderDetail {
	var out []core.OrderDetail
	for _, o := range b.orders {
		if o.user == u {
			out = append(out, o.detail)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreateTime != out[j].CreateTime {
			return out[i].CreateTime > out[j].CreateTime
		}
		return out[i].Hash < out[j].Hash
	})
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func within(t int64, begin, end *int64) bool {
	return (begin == nil || t >= *begin) && (end == nil || t <= *end)
}

// BuildSponsorTransaction wraps the user's transaction with gas owned by the sponsor.
func (b *Backend) BuildSponsorTransaction(ctx context.Context, sess *Session, req rest.BuildSponsorTxRequest) (*rest.BuildSponsorTxResponse, error) {
	sender, err := core.ParseAddress(req.Address)
	if err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}
	if !b.ownsWallet(sess.user, sender) {
		return nil, reject(CodeBadRequest, "address %s does not belong to the user", sender)
	}
	raw, err := sui.DecodeBase64(req.RawTransaction)
	if err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}

	var kind sui.TransactionKind
	if req.OnlyTransactionKind {
		k, err := sui.DecodeTransactionKind(raw)
		if err != nil {
			return nil, reject(CodeBadRequest, "%v", err)
		}
		kind = *k
	} else {
		tx, err := sui.DecodeTransactionData(raw)
		if err != nil {
			return nil, reject(CodeBadRequest, "%v", err)
		}
		if tx.Sender != sender {
			return nil, reject(CodeBadRequest, "transaction sender %s is not %s", tx.Sender, sender)
		}
		kind = tx.Kind
	}

	budget := b.cfg.GasBudget
	if req.GasBudget != nil {
		v, err := decimal.NewFromString(*req.GasBudget)
		if err != nil || !v.IsPositive() || !v.IsInteger() || !v.BigInt().IsUint64() {
			return nil, reject(CodeBadRequest, "invalid gas budget %q", *req.GasBudget)
		}
		budget = v.BigInt().Uint64()
	}

	coins := b.ledger.Coins(b.sponsor, SuiCoinType)
	if len(coins) == 0 {
		return nil, reject(CodeBalance, "sponsor has no gas")
	}
	ref, err := sui.CoinRef(coins[0])
	if err != nil {
		return nil, reject(CodeInternal, "%v", err)
	}

	tx := sui.TransactionData{
		Kind:   kind,
		Sender: sender,
		GasData: sui.GasData{
			Payment: []sui.ObjectRef{ref},
			Owner:   b.sponsor,
			Price:   b.ledger.GasPrice(),
			Budget:  budget,
		},
	}
	if err := b.ledger.CheckRefs(ownedRefs(&tx), sender, b.sponsor); err != nil {
		return nil, reject(CodeBadRequest, "%v", err)
	}
	sponsored := tx.Bytes()
	expires := b.now().Add(ReservationTTL)
	id := uuid.New().String()

	b.mu.Lock()
	b.reservations[id] = &reservation{raw: sponsored, expires: expires, user: sess.user}
	b.mu.Unlock()

	return &rest.BuildSponsorTxResponse{
		Hash:           sui.TransactionDigest(sponsored),
		RawTransaction: sui.EncodeBase64(sponsored),
		Expiration:     expires.UnixMilli(),
		Sponsor:        b.sponsor.String(),
		ReservationID:  id,
	}, nil
}

// ProxyPay executes a sponsored transaction under its reservation.
func (b *Backend) ProxyPay(ctx context.Context, sess *Session, req rest.ProxyPayRequest) (*rest.ProxyPayResponse, error) {
	b.mu.Lock()
	r, ok := b.reservations[req.ReservationID]
	if ok && r.user == sess.user {
		delete(b.reservations, req.ReservationID)
	}
	b.mu.Unlock()
	if !ok || r.user != sess.user {
		return nil, reject(CodeReservation, "unknown reservation %s", req.ReservationID)
	}
	if b.now().After(r.expires) {
		return nil, reject(CodeReservation, "reservation %s expired", req.ReservationID)
	}

	raw, err := sui.DecodeBase64(req.TxBytes)
	if err != nil || !bytes.Equal(raw, r.raw) {
		return nil, reject(CodeBadRequest, "transaction bytes do not match the reservation")
	}
	tx, err := b.verify(raw, req.UserSig)
	if err != nil {
		return nil, err
	}

	hash := sui.TransactionDigest(raw)
	if err := b.ledger.Execute(tx); err != nil {
		b.log.WithError(err).WithField("hash", hash).Warn("sponsored transaction failed")
		return &rest.ProxyPayResponse{Hash: hash, Status: false}, nil
	}
	return &rest.ProxyPayResponse{Hash: hash, Status: true}, nil
}

// Currencies lists what the sandbox can transfer.
func (b *Backend) Currencies(ctx context.Context) []core.CurrencyChain {
	return []core.CurrencyChain{{
		Chain: "ONECHAIN",
		CurrencyList: []core.CurrencyInfo{{
			CurrencyType:      2,
			Currency:          "SUI",
			Name:              "Sui",
			ExchangeRate:      "1",
			DisplayDecimals:   4,
			CalculateDecimals: SuiDecimals,
			Symbol:            "SUI",
			CoinType:          SuiCoinType,
		}},
	}}
}

// UserWallets lists the wallets of the session's user.
func (b *Backend) UserWallets(ctx context.Context, sess *Session, q core.WalletQuery) ([]core.UserWallet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := sess.user
	if q.DID != "" && q.DID != u.DID {
		return []core.UserWallet{}, nil
	}
	out := []core.UserWallet{}
	for _, w := range u.Wallets {
		if q.Address != "" && !strings.EqualFold(q.Address, w.String()) {
			continue
		}
		out = append(out, core.UserWallet{
			DID:         u.DID,
			UserNo:      u.UserNo,
			Address:     w.String(),
			Chain:       "ONECHAIN",
			Account:     w.String(),
			AccountName: u.Nickname,
			WalletType:  "ZKLOGIN",
		})
	}
	return out, nil
}
