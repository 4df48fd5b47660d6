package email

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainBlocklist(t *testing.T) {
	t.Parallel()

	t.Run("exact match", func(t *testing.T) {
		t.Parallel()
		bl := newDomainBlocklist([]string{"linktr.ee"})
		require.NotNil(t, bl)
		require.True(t, bl.Blocked("LINKTR.EE"))
		require.False(t, bl.Blocked("www.linktr.ee"))
	})

	t.Run("wildcard suffix", func(t *testing.T) {
		t.Parallel()
		bl := newDomainBlocklist([]string{"*.facebook.com", ".yelp.com", "*.facebook.com"})
		require.Len(t, bl.suffixes, 2)
		cases := map[string]bool{
			"facebook.com":      true,
			"m.facebook.com":    true,
			"www.yelp.com.":     true,
			"notfacebook.com":   false,
			"joespizza.com":     false,
			"facebook.com.evil": false,
		}
		for host, want := range cases {
			require.Equal(t, want, bl.Blocked(host), host)
		}
	})

	t.Run("empty patterns", func(t *testing.T) {
		t.Parallel()
		bl := newDomainBlocklist([]string{"", "  ", "*."})
		require.Nil(t, bl)
		require.False(t, bl.Blocked("anything.com"))
	})
}
