package provider

import "testing"

func TestParseRecordType(t *testing.T) {
	tests := []struct {
		input   string
		want    RecordType
		wantErr bool
	}{
		{input: "A", want: RecordTypeA},
		{input: "a", want: RecordTypeA},
		{input: " aaaa ", want: RecordTypeAAAA},
		{input: "CNAME", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRecordType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRecordType(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRecordType(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRecordType_Family(t *testing.T) {
	if got := RecordTypeA.Family(); got != "ipv4" {
		t.Errorf("A.Family() = %q, want ipv4", got)
	}
	if got := RecordTypeAAAA.Family(); got != "ipv6" {
		t.Errorf("AAAA.Family() = %q, want ipv6", got)
	}
}

func TestCanonicalAddress(t *testing.T) {
	tests := []struct {
		name       string
		recordType RecordType
		value      string
		want       string
		wantErr    bool
	}{
		{name: "ipv4", recordType: RecordTypeA, value: "203.0.113.5", want: "203.0.113.5"},
		{name: "ipv4 with whitespace", recordType: RecordTypeA, value: " 203.0.113.5\n", want: "203.0.113.5"},
		{name: "ipv6 expanded", recordType: RecordTypeAAAA, value: "2001:0db8:0000:0000:0000:0000:0000:0001", want: "2001:db8::1"},
		{name: "ipv6 uppercase", recordType: RecordTypeAAAA, value: "2001:DB8::A", want: "2001:db8::a"},
		{name: "ipv6 for A", recordType: RecordTypeA, value: "2001:db8::1", wantErr: true},
		{name: "ipv4 for AAAA", recordType: RecordTypeAAAA, value: "203.0.113.5", wantErr: true},
		{name: "ipv4-mapped for AAAA", recordType: RecordTypeAAAA, value: "::ffff:203.0.113.5", wantErr: true},
		{name: "garbage", recordType: RecordTypeA, value: "not-an-ip", wantErr: true},
		{name: "empty", recordType: RecordTypeA, value: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CanonicalAddress(tt.recordType, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CanonicalAddress() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("CanonicalAddress() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFQDN(t *testing.T) {
	tests := map[string]string{
		"home.example.com":   "home.example.com.",
		"home.example.com.":  "home.example.com.",
		"Home.Example.COM":   "home.example.com.",
		" home.example.com ": "home.example.com.",
	}
	for in, want := range tests {
		if got := FQDN(in); got != want {
			t.Errorf("FQDN(%q) = %q, want %q", in, got, want)
		}
	}
}
