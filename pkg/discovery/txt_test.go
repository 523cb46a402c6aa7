package discovery

import (
	"errors"
	"reflect"
	"testing"
)

func TestBridgeTXT_EncodeParse(t *testing.T) {
	txt := BridgeTXT{Serial: "11223344", Model: "t:slim X2", Service: "0000fdfb-0000-1000-8000-00805f9b34fb"}

	records := txt.Encode()
	want := []string{"serial=11223344", "model=t:slim X2", "svc=0000fdfb-0000-1000-8000-00805f9b34fb"}
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("Encode() = %v, want %v", records, want)
	}

	got, err := ParseBridgeTXT(records)
	if err != nil {
		t.Fatalf("ParseBridgeTXT() error = %v", err)
	}
	if *got != txt {
		t.Errorf("ParseBridgeTXT() = %+v, want %+v", *got, txt)
	}
}

func TestBridgeTXT_ModelOptional(t *testing.T) {
	txt := BridgeTXT{Serial: "42"}
	if got := txt.Encode(); len(got) != 1 {
		t.Errorf("Encode() = %v, want only serial", got)
	}
}

func TestBridgeTXT_Validate(t *testing.T) {
	tests := []struct {
		name    string
		txt     BridgeTXT
		wantErr bool
	}{
		{"valid", BridgeTXT{Serial: "1234"}, false},
		{"missing serial", BridgeTXT{Model: "X2"}, true},
		{"equals in value", BridgeTXT{Serial: "a=b"}, true},
		{"too long", BridgeTXT{Serial: "1", Model: string(make([]byte, MaxTXTValueLength+1))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.txt.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTXTRecord) {
				t.Errorf("Validate() error = %v, want ErrInvalidTXTRecord", err)
			}
		})
	}
}

func TestParseTXT(t *testing.T) {
	got := ParseTXT([]string{"serial=9", "flag", "=orphan", "model=a=b"})
	want := map[string]string{"serial": "9", "flag": "", "model": "a=b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseTXT() = %v, want %v", got, want)
	}
}

func TestParseBridgeTXT_MissingSerial(t *testing.T) {
	if _, err := ParseBridgeTXT([]string{"model=X2"}); !errors.Is(err, ErrInvalidTXTRecord) {
		t.Errorf("ParseBridgeTXT() error = %v, want ErrInvalidTXTRecord", err)
	}
}
