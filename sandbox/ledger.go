package sandbox

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"

	"github.com/layer-3/onewallet/core"
	"github.com/layer-3/onewallet/internal/sui"
)

// SuiCoinType is the native coin.
const SuiCoinType = "0x2::sui::SUI"

// object is an owned object tracked by the ledger. Balance is set for coins only.
type object struct {
	ref      sui.ObjectRef
	owner    core.Address
	coinType string
	balance  uint64
}

// Ledger is the sandbox view of the network: epoch, gas price and owned objects.
type Ledger struct {
	mu       sync.RWMutex
	epoch    uint64
	gasPrice uint64
	seq      uint64
	objects  map[core.Address]*object
}

func newLedger(epoch, gasPrice uint64) *Ledger {
	return &Ledger{epoch: epoch, gasPrice: gasPrice, objects: make(map[core.Address]*object)}
}

func (l *Ledger) Epoch() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.epoch
}

// SetEpoch moves the network to epoch.
func (l *Ledger) SetEpoch(epoch uint64) {
	l.mu.Lock()
	l.epoch = epoch
	l.mu.Unlock()
}

func (l *Ledger) GasPrice() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.gasPrice
}

// Mint creates an object owned by owner and returns its reference. A non-empty coinType makes it a coin.
func (l *Ledger) Mint(owner core.Address, coinType string, balance uint64) sui.ObjectRef {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mintLocked(owner, coinType, balance)
}

func objectDigest(o *object) [sui.DigestLength]byte {
	b := binary.BigEndian.AppendUint64(append([]byte{}, o.ref.ObjectID[:]...), o.ref.Version)
	b = append(b, o.owner[:]...)
	b = binary.BigEndian.AppendUint64(b, o.balance)
	return blake2b.Sum256(b)
}

// touch bumps the version of a mutated object.
func (o *object) touch() {
	o.ref.Version++
	o.ref.Digest = objectDigest(o)
}

// Object returns the latest reference of an object.
func (l *Ledger) Object(id core.Address) (sui.ObjectRef, core.Address, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.objects[id]
	if !ok {
		return sui.ObjectRef{}, core.Address{}, false
	}
	return o.ref, o.owner, true
}

// Coins lists coins of coinType owned by owner, ordered by object id.
func (l *Ledger) Coins(owner core.Address, coinType string) []core.Coin {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var coins []core.Coin
	for _, o := range l.objects {
		if o.owner != owner || o.coinType == "" || (coinType != "" && o.coinType != coinType) {
			continue
		}
		coins = append(coins, core.Coin{
			CoinType: o.coinType,
			ObjectID: o.ref.ObjectID,
			Version:  o.ref.Version,
			Digest:   base58.Encode(o.ref.Digest[:]),
			Balance:  o.balance,
		})
	}
	sort.Slice(coins, func(i, j int) bool {
		return coins[i].ObjectID.String() < coins[j].ObjectID.String()
	})
	return coins
}

// Balance sums the coins of coinType owned by owner.
func (l *Ledger) Balance(owner core.Address, coinType string) uint64 {
	var total uint64
	for _, c := range l.Coins(owner, coinType) {
		total += c.Balance
	}
	return total
}

// CheckRefs rejects references that are unknown, stale or not owned by one of owners.
func (l *Ledger) CheckRefs(refs []sui.ObjectRef, owners ...core.Address) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.checkRefsLocked(refs, owners...)
}

func (l *Ledger) checkRefsLocked(refs []sui.ObjectRef, owners ...core.Address) error {
	for _, r := range refs {
		o, ok := l.objects[r.ObjectID]
		if !ok {
			return fmt.Errorf("object %s does not exist", r.ObjectID)
		}
		if o.ref != r {
			return fmt.Errorf("object %s is at version %d, not %d", r.ObjectID, o.ref.Version, r.Version)
		}
		owned := false
		for _, owner := range owners {
			owned = owned || o.owner == owner
		}
		if !owned {
			return fmt.Errorf("object %s is owned by %s", r.ObjectID, o.owner)
		}
	}
	return nil
}

// ownedRefs collects the gas payment and owned object inputs of tx.
func ownedRefs(tx *sui.TransactionData) []sui.ObjectRef {
	refs := append([]sui.ObjectRef(nil), tx.GasData.Payment...)
	for _, in := range tx.Kind.Programmable.Inputs {
		if in.Object != nil && in.Object.Kind == sui.ObjectImmOrOwned {
			refs = append(refs, in.Object.Ref)
		}
	}
	return refs
}

// Execute applies the effects the sandbox understands: coin splits sent with TransferObjects
// and direct object transfers. Gas is not charged.
// A failed transaction leaves the ledger unchanged.
func (l *Ledger) Execute(tx *sui.TransactionData) (err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	backup := make(map[core.Address]*object, len(l.objects))
	for id, o := range l.objects {
		cp := *o
		backup[id] = &cp
	}
	defer func() {
		if err != nil {
			l.objects = backup
		}
	}()

	if err := l.checkRefsLocked(ownedRefs(tx), tx.Sender, tx.GasData.Owner); err != nil {
		return err
	}

	pt := tx.Kind.Programmable
	input := func(a sui.Argument) *sui.CallArg {
		if a.Kind != sui.ArgInput || int(a.Index) >= len(pt.Inputs) {
			return nil
		}
		return &pt.Inputs[a.Index]
	}
	coinOf := func(a sui.Argument) *object {
		if a.Kind == sui.ArgGasCoin {
			if len(tx.GasData.Payment) == 0 {
				return nil
			}
			return l.objects[tx.GasData.Payment[0].ObjectID]
		}
		if in := input(a); in != nil && in.Object != nil {
			return l.objects[in.Object.Ref.ObjectID]
		}
		return nil
	}

	type split struct {
		coinType string
		amounts  []uint64
	}
	splits := make(map[uint16]split)
	touched := make(map[*object]bool)

	for i, cmd := range pt.Commands {
		switch c := cmd.(type) {
		case sui.MergeCoins:
			dst := coinOf(c.Destination)
			if dst == nil {
				return fmt.Errorf("command %d: unknown destination coin", i)
			}
			for _, src := range c.Sources {
				o := coinOf(src)
				if o == nil || o.coinType != dst.coinType {
					return fmt.Errorf("command %d: cannot merge source", i)
				}
				dst.balance += o.balance
				delete(l.objects, o.ref.ObjectID)
				delete(touched, o)
			}
			touched[dst] = true
		case sui.SplitCoins:
			coin := coinOf(c.Coin)
			if coin == nil {
				return fmt.Errorf("command %d: unknown coin", i)
			}
			s := split{coinType: coin.coinType}
			for _, a := range c.Amounts {
				in := input(a)
				if in == nil || len(in.Pure) != 8 {
					return fmt.Errorf("command %d: amount is not a u64 input", i)
				}
				amt := binary.LittleEndian.Uint64(in.Pure)
				if amt > coin.balance {
					return fmt.Errorf("command %d: %w", i, core.ErrInsufficientBalance)
				}
				coin.balance -= amt
				s.amounts = append(s.amounts, amt)
			}
			splits[uint16(i)] = s
			touched[coin] = true
		case sui.TransferObjects:
			in := input(c.Recipient)
			if in == nil || len(in.Pure) != core.AddressLength {
				return fmt.Errorf("command %d: recipient is not an address input", i)
			}
			var to core.Address
			copy(to[:], in.Pure)
			for _, a := range c.Objects {
				switch a.Kind {
				case sui.ArgNestedResult:
					s, ok := splits[a.Index]
					if !ok || int(a.ResultIndex) >= len(s.amounts) {
						return fmt.Errorf("command %d: unknown split result", i)
					}
					l.mintLocked(to, s.coinType, s.amounts[a.ResultIndex])
				case sui.ArgInput:
					o := coinOf(a)
					if o == nil {
						return fmt.Errorf("command %d: unknown object", i)
					}
					o.owner = to
					touched[o] = true
				default:
					return fmt.Errorf("command %d: unsupported transfer argument", i)
				}
			}
		default:
			return fmt.Errorf("command %d: %T is not supported by the sandbox", i, cmd)
		}
	}

	for o := range touched {
		o.touch()
	}
	return nil
}

func (l *Ledger) mintLocked(owner core.Address, coinType string, balance uint64) sui.ObjectRef {
	l.seq++
	seed := binary.BigEndian.AppendUint64(append([]byte("object"), owner[:]...), l.seq)
	o := &object{
		ref:      sui.ObjectRef{ObjectID: core.Address(blake2b.Sum256(seed)), Version: 1},
		owner:    owner,
		coinType: coinType,
		balance:  balance,
	}
	o.ref.Digest = objectDigest(o)
	l.objects[o.ref.ObjectID] = o
	return o.ref
}

// JSON-RPC services served under the suix and sui namespaces.

type systemState struct {
	Epoch string `json:"epoch"`
}

type coin struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

type coinPage struct {
	Data        []coin  `json:"data"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

type objectData struct {
	ObjectID string `json:"objectId"`
	Version  string `json:"version"`
	Digest   string `json:"digest"`
}

type objectError struct {
	Code     string `json:"code"`
	ObjectID string `json:"object_id"`
}

type objectResponse struct {
	Data  *objectData  `json:"data,omitempty"`
	Error *objectError `json:"error,omitempty"`
}

type suixAPI struct {
	ledger *Ledger
}

func (a *suixAPI) GetLatestSuiSystemState(ctx context.Context) (*systemState, error) {
	return &systemState{Epoch: strconv.FormatUint(a.ledger.Epoch(), 10)}, nil
}

func (a *suixAPI) GetReferenceGasPrice(ctx context.Context) (string, error) {
	return strconv.FormatUint(a.ledger.GasPrice(), 10), nil
}

func (a *suixAPI) GetCoins(ctx context.Context, owner string, coinType *string, cursor *string, limit *int) (*coinPage, error) {
	addr, err := core.ParseAddress(owner)
	if err != nil {
		return nil, err
	}
	ct := SuiCoinType
	if coinType != nil && *coinType != "" {
		ct = *coinType
	}
	n := 50
	if limit != nil && *limit > 0 && *limit < n {
		n = *limit
	}

	coins := a.ledger.Coins(addr, ct)
	start := 0
	if cursor != nil {
		for i, c := range coins {
			if c.ObjectID.String() == *cursor {
				start = i + 1
				break
			}
		}
	}

	page := &coinPage{Data: []coin{}}
	for _, c := range coins[start:] {
		if len(page.Data) == n {
			next := page.Data[n-1].CoinObjectID
			page.NextCursor = &next
			page.HasNextPage = true
			break
		}
		page.Data = append(page.Data, coin{
			CoinType:     c.CoinType,
			CoinObjectID: c.ObjectID.String(),
			Version:      strconv.FormatUint(c.Version, 10),
			Digest:       c.Digest,
			Balance:      strconv.FormatUint(c.Balance, 10),
		})
	}
	return page, nil
}

type suiAPI struct {
	ledger *Ledger
}

func (a *suiAPI) GetObject(ctx context.Context, id string, options map[string]bool) (*objectResponse, error) {
	addr, err := core.ParseAddress(id)
	if err != nil {
		return nil, err
	}
	ref, _, ok := a.ledger.Object(addr)
	if !ok {
		return &objectResponse{Error: &objectError{Code: "notExists", ObjectID: id}}, nil
	}
	return &objectResponse{Data: &objectData{
		ObjectID: ref.ObjectID.String(),
		Version:  strconv.FormatUint(ref.Version, 10),
		Digest:   base58.Encode(ref.Digest[:]),
	}}, nil
}

// RPCServer returns a JSON-RPC server answering the chain reads the client performs.
func (l *Ledger) RPCServer() (*rpc.Server, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("suix", &suixAPI{ledger: l}); err != nil {
		return nil, err
	}
	if err := srv.RegisterName("sui", &suiAPI{ledger: l}); err != nil {
		return nil, err
	}
	return srv, nil
}
