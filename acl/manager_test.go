package acl_test

import (
	"net/netip"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagarc03/switchboard/acl"
)

func TestManager_DefaultDeny(t *testing.T) {
	m := acl.NewManager(acl.DefaultDeny)

	ok, err := m.Permit("10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok, "empty permit list denies everything")

	require.NoError(t, m.PermitList.Add("10.0.0.0/8"))

	ok, err = m.Permit("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.Permit("192.168.1.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManager_DefaultPermit(t *testing.T) {
	m := acl.NewManager(acl.DefaultPermit)

	ok, err := m.Permit("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok, "empty deny list permits everything")

	require.NoError(t, m.DenyList.Add("10.0.0.1"))

	ok, err = m.Permit("10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m.Permit("10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManager_DenyListIgnoredInDefaultDeny(t *testing.T) {
	m := acl.NewManager(acl.DefaultDeny)
	require.NoError(t, m.PermitList.Add("10.0.0.1"))
	require.NoError(t, m.DenyList.Add("10.0.0.1"))

	ok, err := m.Permit("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManager_Permit_AddressForms(t *testing.T) {
	m := acl.NewManager(acl.DefaultDeny)
	require.NoError(t, m.PermitList.Add("10.0.0.0/8"))
	require.NoError(t, m.PermitList.Add("2001:db8::/32"))

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.1.2.3", true},
		{"10.1.2.3:5555", true},
		{"::ffff:10.1.2.3", true},
		{"2001:db8::1", true},
		{"[2001:db8::1]:443", true},
		{"[2001:db8::1]", true},
		{"11.0.0.1", false},
		{"2001:db9::1", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			ok, err := m.Permit(tt.ip)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestManager_Permit_InvalidAddress(t *testing.T) {
	m := acl.NewManager(acl.DefaultPermit)

	for _, ip := range []string{"", "   ", "not-an-ip", "300.1.1.1"} {
		ok, err := m.Permit(ip)
		assert.ErrorIs(t, err, acl.ErrInvalidArgument, ip)
		assert.False(t, ok)
	}
}

func TestManager_Permit_InvalidMode(t *testing.T) {
	m := acl.NewManager(acl.Mode("open"))

	ok, err := m.Permit("10.0.0.1")
	assert.ErrorIs(t, err, acl.ErrInvalidMode)
	assert.False(t, ok)
	assert.ErrorIs(t, m.Validate(), acl.ErrInvalidMode)
}

func TestParseMode(t *testing.T) {
	mode, err := acl.ParseMode(" Default-Deny ")
	require.NoError(t, err)
	assert.Equal(t, acl.DefaultDeny, mode)

	mode, err = acl.ParseMode("default-permit")
	require.NoError(t, err)
	assert.Equal(t, acl.DefaultPermit, mode)

	_, err = acl.ParseMode("allow-all")
	assert.ErrorIs(t, err, acl.ErrInvalidMode)
}

func TestParseAddr(t *testing.T) {
	addr, err := acl.ParseAddr("::ffff:192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), addr)

	addr, err = acl.ParseAddr("fe80::1%eth0")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("fe80::1"), addr)
}

func TestManager_ConcurrentPermitAndUpdate(t *testing.T) {
	m := acl.NewManager(acl.DefaultDeny)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = m.PermitList.Update([]string{"10.0.0.0/8"})
				_ = m.PermitList.Add("192.0.2.1")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, err := m.Permit("10.0.0.1")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	ok, err := m.Permit("10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
}
