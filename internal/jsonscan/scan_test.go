package jsonscan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValueBasics(t *testing.T) {
	text := `{"a":"x","b":1.5,"c": true, "d":"", "e" : "spaced"}`

	if v, ok := Value(text, "a"); !ok || v != "x" {
		t.Fatalf(`Value(a) = %q, %v, want "x", true`, v, ok)
	}
	if v, ok := Value(text, "b"); !ok || v != "1.5" {
		t.Fatalf(`Value(b) = %q, %v, want "1.5", true`, v, ok)
	}
	if v, ok := Value(text, "c"); !ok || v != "true" {
		t.Fatalf(`Value(c) = %q, %v, want "true", true`, v, ok)
	}
	if v, ok := Value(text, "d"); !ok || v != "" {
		t.Fatalf(`Value(d) = %q, %v, want "", true`, v, ok)
	}
	if v, ok := Value(text, "e"); !ok || v != "spaced" {
		t.Fatalf(`Value(e) = %q, %v, want "spaced", true`, v, ok)
	}
	if _, ok := Value(text, "missing"); ok {
		t.Fatalf("Value(missing) ok = true, want false")
	}
}

func TestFloatDistinguishesAbsentFromZero(t *testing.T) {
	text := `{"a":"x","b":1.5,"z":0}`

	if f, ok := Float(text, "b"); !ok || f != 1.5 {
		t.Fatalf("Float(b) = %v, %v, want 1.5, true", f, ok)
	}
	if f, ok := Float(text, "z"); !ok || f != 0 {
		t.Fatalf("Float(z) = %v, %v, want 0, true", f, ok)
	}
	// Absent key: the best-effort form collapses to 0.0, which is
	// deliberately ambiguous with a genuine zero; the two-value form is not.
	if _, ok := Float(text, "c"); ok {
		t.Fatalf("Float(c) ok = true, want false for absent key")
	}
	if got := FloatOr(text, "c", 0); got != 0 {
		t.Fatalf("FloatOr(c, 0) = %v, want 0", got)
	}
}

func TestDecimalQuotedAndBare(t *testing.T) {
	text := `{"positionAmt":"-0.250","leverage":20}`
	if v, ok := Decimal(text, "positionAmt"); !ok || !v.Equal(decimal.RequireFromString("-0.250")) {
		t.Fatalf("Decimal(positionAmt) = %s, %v", v, ok)
	}
	if v, ok := Decimal(text, "leverage"); !ok || !v.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("Decimal(leverage) = %s, %v", v, ok)
	}
	if _, ok := Decimal(text, "entryPrice"); ok {
		t.Fatalf("Decimal(entryPrice) ok = true, want false")
	}
}

func TestBoolAndHas(t *testing.T) {
	text := `{"canTrade":true,"canWithdraw":false}`
	if !Bool(text, "canTrade") {
		t.Fatalf("Bool(canTrade) = false, want true")
	}
	if Bool(text, "canWithdraw") {
		t.Fatalf("Bool(canWithdraw) = true, want false")
	}
	if Bool(text, "canDeposit") {
		t.Fatalf("Bool(absent) = true, want false")
	}
	if !Has(text, "canWithdraw") || Has(text, "canDeposit") {
		t.Fatalf("Has() misreported key presence")
	}
}

func TestValueStopsAtEscapedQuoteKnownLimitation(t *testing.T) {
	// No escape decoding: the scan ends at the first quote, even an
	// escaped one. Documented contract, not an error.
	text := `{"msg":"a \"quoted\" word"}`
	v, ok := Value(text, "msg")
	if !ok {
		t.Fatalf("Value(msg) not found")
	}
	if v != `a \` {
		t.Fatalf("Value(msg) = %q, want %q", v, `a \`)
	}
}

func TestObjectsSplitsTopLevelElements(t *testing.T) {
	text := `{"symbols":[
		{"symbol":"BTCUSDT","filters":[{"filterType":"LOT_SIZE","minQty":"0.001"}],"status":"TRADING"},
		{"symbol":"ETHUSDT","filters":[{"filterType":"LOT_SIZE","minQty":"0.01"}],"status":"BREAK"}
	],"serverTime":1}`

	objs := Objects(text, "symbols")
	if len(objs) != 2 {
		t.Fatalf("Objects() len = %d, want 2", len(objs))
	}
	if got := String(objs[0], "symbol"); got != "BTCUSDT" {
		t.Fatalf("objs[0] symbol = %q, want BTCUSDT", got)
	}
	if got := String(objs[1], "status"); got != "BREAK" {
		t.Fatalf("objs[1] status = %q, want BREAK", got)
	}
	// Nested filters stay inside their element.
	if got := String(objs[1], "minQty"); got != "0.01" {
		t.Fatalf("objs[1] minQty = %q, want 0.01", got)
	}
}

func TestObjectsAbsentArray(t *testing.T) {
	if objs := Objects(`{"a":1}`, "symbols"); objs != nil {
		t.Fatalf("Objects(absent) = %v, want nil", objs)
	}
}

func TestObjectsIgnoresBracesInsideStrings(t *testing.T) {
	text := `{"rows":[{"note":"b{race}y","v":1},{"note":"}{","v":2}]}`
	objs := Objects(text, "rows")
	if len(objs) != 2 {
		t.Fatalf("Objects() len = %d, want 2", len(objs))
	}
	if f, ok := Float(objs[1], "v"); !ok || f != 2 {
		t.Fatalf("objs[1] v = %v, %v, want 2, true", f, ok)
	}
}

func TestObjectsDeepNestingProperty(t *testing.T) {
	// Elements with increasing nesting depth must still split cleanly.
	var elems []string
	for i := 1; i <= 6; i++ {
		inner := fmt.Sprintf(`{"depth":%d}`, i)
		for j := 0; j < i; j++ {
			inner = fmt.Sprintf(`{"nested":%s,"pad":[%s]}`, inner, inner)
		}
		elems = append(elems, fmt.Sprintf(`{"id":%d,"body":%s}`, i, inner))
	}
	text := `{"items":[` + strings.Join(elems, ",") + `]}`

	objs := Objects(text, "items")
	if len(objs) != len(elems) {
		t.Fatalf("Objects() len = %d, want %d", len(objs), len(elems))
	}
	for i, obj := range objs {
		id, ok := Float(obj, "id")
		if !ok || int(id) != i+1 {
			t.Fatalf("objs[%d] id = %v, %v, want %d", i, id, ok, i+1)
		}
	}
}

func TestValueOnTruncatedText(t *testing.T) {
	if v, ok := Value(`{"a":1.5`, "a"); !ok || v != "1.5" {
		t.Fatalf("Value(truncated) = %q, %v, want 1.5, true", v, ok)
	}
	if v, ok := Value(`{"a":"x`, "a"); !ok || v != "x" {
		t.Fatalf("Value(truncated string) = %q, %v, want x, true", v, ok)
	}
	if _, ok := Value(`{"a"`, "a"); ok {
		t.Fatalf("Value(no colon) ok = true, want false")
	}
}

func TestTopLevelObjectsSplitsBareArray(t *testing.T) {
	text := ` [{"symbol":"BTCUSDT","positionAmt":"0.5"},{"symbol":"ETHUSDT","positionAmt":"-2"}]`
	objs := TopLevelObjects(text)
	if len(objs) != 2 {
		t.Fatalf("len(objs) = %d, want 2", len(objs))
	}
	if got := String(objs[0], "symbol"); got != "BTCUSDT" {
		t.Fatalf("objs[0] symbol = %q, want BTCUSDT", got)
	}
	if got := String(objs[1], "positionAmt"); got != "-2" {
		t.Fatalf("objs[1] positionAmt = %q, want -2", got)
	}
}

func TestTopLevelObjectsRejectsNonArray(t *testing.T) {
	if objs := TopLevelObjects(`{"a":[{"b":1}]}`); objs != nil {
		t.Fatalf("TopLevelObjects(object) = %v, want nil", objs)
	}
	if objs := TopLevelObjects(`plain text`); objs != nil {
		t.Fatalf("TopLevelObjects(text) = %v, want nil", objs)
	}
}

func TestTopLevelObjectsEmptyArray(t *testing.T) {
	if objs := TopLevelObjects(`[]`); len(objs) != 0 {
		t.Fatalf("len(objs) = %d, want 0", len(objs))
	}
}
