package ble

import (
	"testing"

	"tinygo.org/x/bluetooth"
)

func TestParseUUID(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    bluetooth.UUID
		wantErr bool
	}{
		{name: "short form", in: "1001", want: bluetooth.New16BitUUID(0x1001)},
		{name: "short form upper case", in: "3A0F", want: bluetooth.New16BitUUID(0x3a0f)},
		{
			name: "full form",
			in:   "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			want: bluetooth.NewUUID([16]byte{0x6e, 0x40, 0x00, 0x01, 0xb5, 0xa3, 0xf3, 0x93, 0xe0, 0xa9, 0xe5, 0x0e, 0x24, 0xdc, 0xca, 0x9e}),
		},
		{name: "short form not hex", in: "zz01", wantErr: true},
		{name: "garbage", in: "not-a-uuid", wantErr: true},
		{name: "empty", in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUUID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUUID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseUUID(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseUUIDShortFormMatchesFullForm(t *testing.T) {
	short, err := ParseUUID("2002")
	if err != nil {
		t.Fatal(err)
	}
	full, err := ParseUUID("00002002-0000-1000-8000-00805f9b34fb")
	if err != nil {
		t.Fatal(err)
	}
	if short != full {
		t.Errorf("short %s != full %s", short, full)
	}
}
