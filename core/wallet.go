package core

// CurrencyChain lists the currencies available on one chain.
type CurrencyChain struct {
	Chain        string         `json:"chain"`
	CurrencyList []CurrencyInfo `json:"currencyList"`
}

// CurrencyInfo describes a currency. CurrencyType is 1 for fiat and 2 for digital currencies.
type CurrencyInfo struct {
	CurrencyType      int32  `json:"currencyType"`
	Currency          string `json:"currency"`
	Name              string `json:"name"`
	Pic               string `json:"pic"`
	ExchangeRate      string `json:"exchangeRate"`
	DisplayDecimals   int32  `json:"displayDecimals"`
	CalculateDecimals int32  `json:"calculateDecimals"`
	CreateTime        int64  `json:"createTime"`
	UpdateTime        int64  `json:"updateTime"`
	Symbol            string `json:"symbol"`
	CoinType          string `json:"coinType"`
}

// WalletQuery selects user wallets by DID or address.
type WalletQuery struct {
	DID     string `json:"did,omitempty"`
	Address string `json:"address"`
}

// UserWallet is a wallet bound to a user.
type UserWallet struct {
	DID         string `json:"did,omitempty"`
	UserNo      string `json:"user_no"`
	Address     string `json:"address"`
	Chain       string `json:"chain"`
	Account     string `json:"account"`
	AccountName string `json:"account_name"`
	WalletType  string `json:"wallet_type"`
	AliasName   string `json:"alias_name,omitempty"`
}
