package httpclient

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
)

// ErrDeniedAddress 目标地址属于内网、回环或链路本地网段
var ErrDeniedAddress = errors.New("destination address denied")

// 运营商级 NAT 网段，net.IP 没有现成判断
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

// IsPublicIP 是否为可对外请求的公网地址
func IsPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return false
	}
	if addr, ok := netip.AddrFromSlice(ip); ok && sharedAddressSpace.Contains(addr.Unmap()) {
		return false
	}
	return true
}

// denyPrivateControl 拨号前检查解析后的地址，DNS 指向内网同样会被拒绝
func denyPrivateControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDeniedAddress, address)
	}
	if !IsPublicIP(net.ParseIP(host)) {
		return fmt.Errorf("%w: %s", ErrDeniedAddress, host)
	}
	return nil
}

// guardTransport 在请求层拒绝字面量内网地址与 localhost，重定向的每一跳都会经过这里
type guardTransport struct {
	transport http.RoundTripper
}

func (g *guardTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := checkHost(req.URL.Hostname()); err != nil {
		return nil, err
	}
	return g.transport.RoundTrip(req)
}

func checkHost(host string) error {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if h == "" || h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return fmt.Errorf("%w: %q", ErrDeniedAddress, host)
	}
	if ip := net.ParseIP(h); ip != nil && !IsPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrDeniedAddress, host)
	}
	return nil
}
