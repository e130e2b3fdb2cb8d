package core

import (
	"github.com/shopspring/decimal"
)

// Order statuses reported by the wallet service.
const (
	OrderStatusUnpaid  = "UN_PAY"
	OrderStatusRunning = "RUNNING"
	OrderStatusSuccess = "SUCCESS"
	OrderStatusFail    = "FAIL"
	OrderStatusCancel  = "CANCEL"
	OrderStatusTimeout = "TIMEOUT"
)

// TransferRequest asks the wallet service to draft a transfer.
type TransferRequest struct {
	FromAddress Address
	ToAddress   Address
	CoinType    string
	Amount      decimal.Decimal
	Remark      string
}

// TransferOrder is an unsigned transaction draft returned by the wallet service.
// It is consumed exactly once by signing.
type TransferOrder struct {
	TransferRequest
	Hash           string
	RawTransaction []byte
}

// SignedTransaction is the final artifact submitted to the network.
type SignedTransaction struct {
	OrderHash     string
	TxBytes       []byte
	UserSignature string
	ReservationID string
	Digest        string
}

// TxResult is the network response to a submitted transaction.
type TxResult struct {
	Hash   string
	Status string
}

// SponsorRequest asks the sponsor service to fund gas for a client-built transaction.
type SponsorRequest struct {
	Address             Address
	RawTransaction      []byte
	OnlyTransactionKind bool
	GasBudget           *decimal.Decimal
}

// SponsoredTransaction is the gas-funded transaction returned by the sponsor service.
type SponsoredTransaction struct {
	Hash           string
	RawTransaction []byte
	Expiration     int64
	Sponsor        string
	ReservationID  string
}

// OrderQuery selects a single transfer order.
type OrderQuery struct {
	Hash              string   `json:"hash"`
	ToAddress         string   `json:"toAddress"`
	Currency          string   `json:"currency"`
	StatusList        []string `json:"statusList,omitempty"`
	BeginTime         *int64   `json:"beginTime,omitempty"`
	EndTime           *int64   `json:"endTime,omitempty"`
	CompleteBeginTime *int64   `json:"completeBeginTime,omitempty"`
	CompleteEndTime   *int64   `json:"completeEndTime,omitempty"`
}

// OrderPageQuery selects a page of transfer orders.
type OrderPageQuery struct {
	DID               string   `json:"did,omitempty"`
	Address           string   `json:"address"`
	OrderID           string   `json:"orderId,omitempty"`
	TradeHash         string   `json:"tradeHash,omitempty"`
	ToDID             string   `json:"toDid,omitempty"`
	ToAddress         string   `json:"toAddress,omitempty"`
	MinAmount         string   `json:"minAmount,omitempty"`
	MaxAmount         string   `json:"maxAmount,omitempty"`
	Currency          string   `json:"currency,omitempty"`
	TransferMethod    string   `json:"transferMethod,omitempty"`
	StatusList        []string `json:"statusList,omitempty"`
	BeginTime         *int64   `json:"beginTime,omitempty"`
	EndTime           *int64   `json:"endTime,omitempty"`
	QueryType         string   `json:"queryType,omitempty"`
	CompleteBeginTime *int64   `json:"completeBeginTime,omitempty"`
	CompleteEndTime   *int64   `json:"completeEndTime,omitempty"`
	PageIndex         int64    `json:"pageIndex"`
	PageSize          int64    `json:"pageSize"`
}

// OrderDetail is the stored view of a transfer order.
type OrderDetail struct {
	Hash           string `json:"hash"`
	DID            string `json:"did,omitempty"`
	NickName       string `json:"nickName,omitempty"`
	Address        string `json:"address"`
	AddressName    string `json:"addressName,omitempty"`
	MerchantID     string `json:"merchantId"`
	MerchantName   string `json:"merchantName"`
	TransferMethod string `json:"transferMethod"`
	ToDID          string `json:"toDid,omitempty"`
	ToNickName     string `json:"toNickName,omitempty"`
	ToAddress      string `json:"toAddress"`
	ToAddressName  string `json:"toAddressName,omitempty"`
	ToMerchantID   string `json:"toMerchantId"`
	ToMerchantName string `json:"toMerchantName"`
	Currency       string `json:"currency"`
	Amount         string `json:"amount"`
	Status         string `json:"status"`
	CreateTime     int64  `json:"createTime"`
	CompleteTime   int64  `json:"completeTime"`
	Remark         string `json:"remark"`
	Sender         string `json:"sender"`
	Receiver       string `json:"receiver"`
}

// Page is one page of a paginated listing.
type Page[T any] struct {
	Rows      []T   `json:"rows"`
	TotalNum  int64 `json:"totalNum"`
	PageSize  int64 `json:"pageSize"`
	PageIndex int64 `json:"pageIndex"`
}

// Coin is a coin object owned by an address.
type Coin struct {
	CoinType string
	ObjectID Address
	Version  uint64
	Digest   string
	Balance  uint64
}
