package discovery

import (
	"errors"
	"net"
	"testing"
)

func TestBroadcastAddress(t *testing.T) {
	tests := []struct {
		name string
		ip   string
		mask net.IPMask
		want string
	}{
		{
			name: "class C subnet",
			ip:   "192.168.1.10",
			mask: net.IPv4Mask(255, 255, 255, 0),
			want: "192.168.1.255",
		},
		{
			name: "class A subnet",
			ip:   "10.20.30.40",
			mask: net.IPv4Mask(255, 0, 0, 0),
			want: "10.255.255.255",
		},
		{
			name: "non-octet boundary",
			ip:   "172.16.5.9",
			mask: net.IPv4Mask(255, 255, 252, 0),
			want: "172.16.7.255",
		},
		{
			name: "loopback",
			ip:   "127.0.0.1",
			mask: net.CIDRMask(8, 32),
			want: "127.255.255.255",
		},
		{
			name: "16-byte mask form",
			ip:   "192.168.1.10",
			mask: net.CIDRMask(120, 128),
			want: "192.168.1.255",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BroadcastAddress(net.ParseIP(tt.ip), tt.mask)
			if got.String() != tt.want {
				t.Errorf("BroadcastAddress(%s, %s) = %s, want %s", tt.ip, tt.mask, got, tt.want)
			}
		})
	}
}

func TestBroadcastAddress_IPv6(t *testing.T) {
	if got := BroadcastAddress(net.ParseIP("fe80::1"), net.CIDRMask(64, 128)); got != nil {
		t.Errorf("BroadcastAddress() for IPv6 = %v, want nil", got)
	}
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		data        string
		strict      bool
		wantPort    int
		wantMatched bool
		wantErr     bool
	}{
		{
			name:        "valid response",
			data:        `{"AlpacaPort":11111}`,
			wantPort:    11111,
			wantMatched: true,
		},
		{
			name:        "valid response with whitespace",
			data:        `{ "AlpacaPort": 4567 }`,
			strict:      true,
			wantPort:    4567,
			wantMatched: true,
		},
		{
			name:        "lowercase marker loose",
			data:        `{"alpacaport":8080}`,
			wantPort:    8080,
			wantMatched: true,
		},
		{
			name:        "lowercase marker strict",
			data:        `{"alpacaport":8080}`,
			strict:      true,
			wantMatched: false,
		},
		{
			name:        "probe echo is not a response",
			data:        ProbeMessage,
			wantMatched: false,
		},
		{
			name:        "zero port",
			data:        `{"AlpacaPort":0}`,
			wantMatched: true,
			wantErr:     true,
		},
		{
			name:        "port out of range",
			data:        `{"AlpacaPort":70000}`,
			wantMatched: true,
			wantErr:     true,
		},
		{
			name:        "unparsable json",
			data:        `{"AlpacaPort":`,
			wantMatched: true,
			wantErr:     true,
		},
		{
			name:        "port as string",
			data:        `{"AlpacaPort":"11111"}`,
			wantMatched: true,
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, matched, err := ParseResponse([]byte(tt.data), tt.strict)

			if matched != tt.wantMatched {
				t.Errorf("matched = %v, want %v", matched, tt.wantMatched)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if port != tt.wantPort {
				t.Errorf("port = %d, want %d", port, tt.wantPort)
			}
		})
	}
}

func TestParseResponse_ZeroPortIsInvalidPort(t *testing.T) {
	_, _, err := ParseResponse([]byte(`{"AlpacaPort":0}`), false)
	if !errors.Is(err, ErrInvalidPort) {
		t.Errorf("err = %v, want ErrInvalidPort", err)
	}
}

func TestEncodeResponse(t *testing.T) {
	port, matched, err := ParseResponse(EncodeResponse(32323), true)
	if err != nil || !matched || port != 32323 {
		t.Errorf("ParseResponse(EncodeResponse(32323)) = %d, %v, %v", port, matched, err)
	}
}

func TestIsProbe(t *testing.T) {
	if !IsProbe([]byte(ProbeMessage)) {
		t.Error("IsProbe(ProbeMessage) = false")
	}
	if IsProbe([]byte(`{"AlpacaPort":1}`)) {
		t.Error("IsProbe(response) = true")
	}
}
