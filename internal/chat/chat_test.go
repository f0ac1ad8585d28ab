package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"user", "assistant", "system"} {
		role, err := ParseRole(valid)
		require.NoError(t, err)
		require.Equal(t, Role(valid), role)
	}

	for _, invalid := range []string{"", "tool", "USER", "admin"} {
		_, err := ParseRole(invalid)
		require.Error(t, err, "role %q should be rejected", invalid)
	}
}

func TestBucketFor(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		age  time.Duration
		want Bucket
	}{
		{0, BucketToday},
		{23 * time.Hour, BucketToday},
		{24 * time.Hour, BucketYesterday},
		{47 * time.Hour, BucketYesterday},
		{48 * time.Hour, BucketWeek},
		{7 * 24 * time.Hour, BucketWeek},
		{8 * 24 * time.Hour, BucketMonth},
		{90 * 24 * time.Hour, BucketMonth},
	}
	for _, tc := range cases {
		got := BucketFor(now.Add(-tc.age), now)
		require.Equal(t, tc.want, got, "age %v", tc.age)
	}
}

func TestBuckets_Order(t *testing.T) {
	require.Equal(t, []Bucket{BucketToday, BucketYesterday, BucketWeek, BucketMonth}, Buckets())
}
