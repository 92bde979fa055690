package model

import "github.com/samber/lo"

type Instrument struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

var Instruments = []Instrument{
	{Symbol: "BTCUSDT", Name: "Bitcoin/USDT", Category: "Crypto"},
	{Symbol: "ETHUSDT", Name: "Ethereum/USDT", Category: "Crypto"},
	{Symbol: "BNBUSDT", Name: "Binance Coin/USDT", Category: "Crypto"},
	{Symbol: "ADAUSDT", Name: "Cardano/USDT", Category: "Crypto"},
	{Symbol: "DOGEUSDT", Name: "Dogecoin/USDT", Category: "Crypto"},
	{Symbol: "XRPUSDT", Name: "Ripple/USDT", Category: "Crypto"},
	{Symbol: "SOLUSDT", Name: "Solana/USDT", Category: "Crypto"},
	{Symbol: "DOTUSDT", Name: "Polkadot/USDT", Category: "Crypto"},
	{Symbol: "MATICUSDT", Name: "Polygon/USDT", Category: "Crypto"},
	{Symbol: "LTCUSDT", Name: "Litecoin/USDT", Category: "Crypto"},
}

func LookupInstrument(symbol string) (Instrument, bool) {
	return lo.Find(Instruments, func(i Instrument) bool {
		return i.Symbol == symbol
	})
}
