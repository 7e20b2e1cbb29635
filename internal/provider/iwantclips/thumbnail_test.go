package iwantclips

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestStillCandidate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://cdn.test/t/1.gif", "https://cdn.test/t/1.jpg", true},
		{"https://cdn.test/t/1.GIF?v=2", "https://cdn.test/t/1.jpg?v=2", true},
		{"https://cdn.test/gif/1.gif", "https://cdn.test/gif/1.jpg", true},
		{"https://cdn.test/t/1.jpg", "", false},
		{"https://cdn.test/t/1.png", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := StillCandidate(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("StillCandidate(%q) 期望 (%q,%v)，实际 (%q,%v)", tc.in, tc.want, tc.ok, got, ok)
		}
	}
}

func TestResolveThumbnail(t *testing.T) {
	cases := []struct {
		name   string
		status int
		still  bool
	}{
		{"静态图存在", http.StatusOK, true},
		{"静态图 404 回退原图", http.StatusNotFound, false},
		{"其它状态仍用静态图", http.StatusForbidden, true},
		{"服务端错误仍用静态图", http.StatusInternalServerError, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var probed string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				probed = r.URL.Path
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			poster := srv.URL + "/thumbs/1234.gif"
			got, err := Provider{}.ResolveThumbnail(context.Background(), srv.Client(), poster)
			require.NoError(t, err)
			require.Equal(t, "/thumbs/1234.jpg", probed)
			if tc.still {
				require.Equal(t, srv.URL+"/thumbs/1234.jpg", got)
			} else {
				require.Equal(t, poster, got)
			}
		})
	}
}

func TestResolveThumbnail_NonGifNotProbed(t *testing.T) {
	c := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		t.Fatalf("非 gif 不应发起探测请求：%s", r.URL)
		return nil, nil
	})}
	got, err := Provider{}.ResolveThumbnail(context.Background(), c, "https://cdn.test/t/1.jpg")
	require.NoError(t, err)
	require.Equal(t, "https://cdn.test/t/1.jpg", got)
}

func TestResolveThumbnail_TransportErrorIsFatal(t *testing.T) {
	boom := errors.New("connection reset")
	c := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, boom
	})}
	_, err := Provider{}.ResolveThumbnail(context.Background(), c, "https://cdn.test/t/1.gif")
	require.ErrorIs(t, err, boom)
}
