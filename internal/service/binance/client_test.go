package binance

import (
	"testing"
	"time"
)

func TestParseKlineRow(t *testing.T) {
	row := []interface{}{
		1717200000000.0, "100.5", "101.0", "99.5", "100.8", "1234.5",
		1717200899999.0, "124419.6", 812.0, "600.1", "60430.0", "0",
	}
	c, ok := parseKlineRow("BTCUSDT", row)
	if !ok {
		t.Fatalf("expected row to parse")
	}
	if c.Symbol != "BTCUSDT" {
		t.Fatalf("unexpected symbol %q", c.Symbol)
	}
	if got := c.OpenTime; !got.Equal(time.UnixMilli(1717200000000).UTC()) {
		t.Fatalf("unexpected open time %v", got)
	}
	if c.Open != 100.5 || c.High != 101.0 || c.Low != 99.5 || c.Close != 100.8 || c.Volume != 1234.5 {
		t.Fatalf("unexpected fields %+v", c)
	}
}

func TestParseKlineRowRejectsMalformed(t *testing.T) {
	if _, ok := parseKlineRow("BTCUSDT", []interface{}{1717200000000.0, "100.5"}); ok {
		t.Fatalf("expected short row rejection")
	}
	row := []interface{}{1717200000000.0, "not-a-price", "101.0", "99.5", "100.8", "1234.5"}
	if _, ok := parseKlineRow("BTCUSDT", row); ok {
		t.Fatalf("expected unparsable price rejection")
	}
	row = []interface{}{0.0, "100.5", "101.0", "99.5", "100.8", "1234.5"}
	if _, ok := parseKlineRow("BTCUSDT", row); ok {
		t.Fatalf("expected zero open time rejection")
	}
}

func TestKlineToCandle(t *testing.T) {
	k := wsKline{
		T: 1717200000000,
		S: "ETHUSDT",
		O: "3000.1",
		H: "3010.5",
		L: "2990.0",
		C: "3005.2",
		V: "55.5",
		X: true,
	}
	c, ok := klineToCandle(k)
	if !ok {
		t.Fatalf("expected kline to convert")
	}
	if c.Symbol != "ETHUSDT" || c.Close != 3005.2 || c.Volume != 55.5 {
		t.Fatalf("unexpected candle %+v", c)
	}

	k.C = "bogus"
	if _, ok := klineToCandle(k); ok {
		t.Fatalf("expected unparsable close rejection")
	}
	k.C = "3005.2"
	k.S = ""
	if _, ok := klineToCandle(k); ok {
		t.Fatalf("expected empty symbol rejection")
	}
}
