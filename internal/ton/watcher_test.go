package ton

import (
	"testing"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

func TestParseDepositMemo(t *testing.T) {
	const raw = "0:abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789"

	tests := []struct {
		comment string
		want    string
		valid   bool
	}{
		{"deposit:" + raw, raw, true},
		{"  deposit:0:ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789ABCDEF0123456789 ", raw, true},
		{"deposit:", "", false},
		{"deposit:garbage", "", false},
		{"tip:" + raw, "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			got, err := ParseDepositMemo(tt.comment)
			if (err == nil) != tt.valid {
				t.Fatalf("ParseDepositMemo(%q) error = %v, valid %v", tt.comment, err, tt.valid)
			}
			if got != tt.want {
				t.Errorf("ParseDepositMemo(%q) = %q, want %q", tt.comment, got, tt.want)
			}
		})
	}
}

func TestExtractComment(t *testing.T) {
	text := cell.BeginCell().
		MustStoreUInt(0, 32).
		MustStoreSlice([]byte("deposit:abc"), uint(len("deposit:abc"))*8).
		EndCell()
	if got := extractComment(&tlb.InternalMessage{Body: text}); got != "deposit:abc" {
		t.Errorf("extractComment = %q", got)
	}

	op := cell.BeginCell().MustStoreUInt(0x0f8a7ea5, 32).MustStoreUInt(1, 64).EndCell()
	if got := extractComment(&tlb.InternalMessage{Body: op}); got != "" {
		t.Errorf("non-text body gave %q", got)
	}

	if got := extractComment(&tlb.InternalMessage{}); got != "" {
		t.Errorf("empty body gave %q", got)
	}
}
