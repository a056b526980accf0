package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/maheshrc27/postdispatch/internal/models"
	"github.com/maheshrc27/postdispatch/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedSleeps struct {
	delays []time.Duration
}

func newTestRotationService(t *testing.T, store *memory.Store, strategies *RotationStrategies) *ipRotationService {
	t.Helper()
	st := DefaultRotationStrategies()
	if strategies != nil {
		st = *strategies
	}
	return NewIPRotationService(store.Pools(), store.Sessions(), store.RotationLogs(), st, nil, zap.NewNop()).(*ipRotationService)
}

func rotationServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestRotateIP_USB4G(t *testing.T) {
	srv := rotationServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rotate", r.URL.Path)
		assert.Equal(t, "Bearer dongle-token", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "airplane_mode", body["method"])
		assert.Equal(t, float64(10), body["duration"])

		writeJSON(w, map[string]string{"newIp": "100.64.0.9"})
	})

	store := memory.NewStore()
	store.AddPool(&models.IpPool{
		ID: "usb", Name: "dongle", Type: models.PoolTypeUSB4G, IsEnabled: true, Status: models.PoolStatusActive,
		CurrentIP: "100.64.0.1",
		Config:    models.IpPoolConfig{ControlEndpoint: srv.URL + "/", AuthToken: "dongle-token"},
	})
	sess := store.AddSession(&models.IpPoolSession{IPPoolID: "usb", IPAddress: "100.64.0.1", SessionStart: time.Now(), PostsCount: 3})

	svc := newTestRotationService(t, store, nil)
	res := svc.RotateIP(context.Background(), RotationRequest{PoolID: "usb", Trigger: models.TriggerManual})

	require.True(t, res.Success, res.Error)
	assert.True(t, res.Rotated)
	assert.Equal(t, "100.64.0.1", res.OldIP)
	assert.Equal(t, "100.64.0.9", res.NewIP)

	pool := store.Pool("usb")
	assert.Equal(t, "100.64.0.9", pool.CurrentIP)
	assert.Equal(t, 1, pool.TotalRotations)
	require.NotNil(t, pool.LastRotatedAt)
	assert.False(t, store.Session(sess.ID).Active())

	logs := store.Logs()
	require.Len(t, logs, 1)
	assert.True(t, logs[0].Success)
	assert.Equal(t, "100.64.0.1", logs[0].OldIP)
	assert.Equal(t, "100.64.0.9", logs[0].NewIP)
	assert.Equal(t, "Manual rotation triggered by admin", logs[0].Reason)
}

func TestRotateIP_ProxyAndCloudResponseShapes(t *testing.T) {
	proxy := rotationServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/refresh-session", r.URL.Path)
		assert.Equal(t, "Bearer proxy-key", r.Header.Get("Authorization"))
		writeJSON(w, map[string]string{"ip": "203.0.113.5", "newIp": "203.0.113.6"})
	})
	cloud := rotationServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rotate", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, map[string]string{"ip": "198.51.100.7"})
	})

	store := memory.NewStore()
	store.AddPool(&models.IpPool{ID: "proxy", Type: models.PoolTypeProxyAPI, CurrentIP: "203.0.113.1",
		Config: models.IpPoolConfig{APIEndpoint: proxy.URL, APIKey: "proxy-key"}})
	store.AddPool(&models.IpPool{ID: "cloud", Type: models.PoolTypeCloudWorker, CurrentIP: "198.51.100.1",
		Config: models.IpPoolConfig{WorkerURL: cloud.URL}})

	svc := newTestRotationService(t, store, nil)
	ctx := context.Background()

	res := svc.RotateIP(ctx, RotationRequest{PoolID: "proxy", Trigger: models.TriggerErrorRecovery})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "203.0.113.5", res.NewIP)

	res = svc.RotateIP(ctx, RotationRequest{PoolID: "cloud", Trigger: models.TriggerErrorRecovery})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "198.51.100.7", res.NewIP)
}

func TestRotateIP_FailureLeavesPoolUnchanged(t *testing.T) {
	cases := map[string]func(w http.ResponseWriter, r *http.Request){
		"http error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "modem busy", http.StatusBadGateway)
		},
		"missing ip": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, map[string]string{"status": "ok"})
		},
	}

	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := rotationServer(t, handler)
			store := memory.NewStore()
			store.AddPool(&models.IpPool{ID: "usb", Type: models.PoolTypeUSB4G, CurrentIP: "100.64.0.1",
				Config: models.IpPoolConfig{ControlEndpoint: srv.URL, AuthToken: "tok"}})
			sess := store.AddSession(&models.IpPoolSession{IPPoolID: "usb", SessionStart: time.Now()})

			res := newTestRotationService(t, store, nil).RotateIP(context.Background(),
				RotationRequest{PoolID: "usb", Trigger: models.TriggerManual})

			assert.False(t, res.Success)
			assert.False(t, res.Rotated)
			assert.NotEmpty(t, res.Error)

			pool := store.Pool("usb")
			assert.Equal(t, "100.64.0.1", pool.CurrentIP)
			assert.Nil(t, pool.LastRotatedAt)
			assert.True(t, store.Session(sess.ID).Active())

			logs := store.Logs()
			require.Len(t, logs, 1)
			assert.False(t, logs[0].Success)
			assert.NotEmpty(t, logs[0].ErrorMessage)
		})
	}
}

func TestRotateIP_MissingConfigAndUnknownPool(t *testing.T) {
	store := memory.NewStore()
	store.AddPool(&models.IpPool{ID: "usb", Type: models.PoolTypeUSB4G})
	store.AddPool(&models.IpPool{ID: "odd", Type: "satellite_uplink"})
	svc := newTestRotationService(t, store, nil)
	ctx := context.Background()

	res := svc.RotateIP(ctx, RotationRequest{PoolID: "usb", Trigger: models.TriggerManual})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "missing endpoint")

	res = svc.RotateIP(ctx, RotationRequest{PoolID: "odd", Trigger: models.TriggerManual})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "unsupported pool type")

	res = svc.RotateIP(ctx, RotationRequest{PoolID: "ghost", Trigger: models.TriggerManual})
	assert.False(t, res.Success)
	assert.Equal(t, "IP Pool not found", res.Error)
	assert.Len(t, store.Logs(), 2)
}

func TestRotateIP_TimeIntervalRotatesOnce(t *testing.T) {
	var calls int32
	srv := rotationServer(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]string{"newIp": "10.1.0." + string(rune('0'+n))})
	})

	store := memory.NewStore()
	store.AddPool(&models.IpPool{ID: "w", Type: models.PoolTypeCloudWorker, CurrentIP: "10.1.0.0",
		Config: models.IpPoolConfig{WorkerURL: srv.URL}})
	svc := newTestRotationService(t, store, nil)
	ctx := context.Background()

	first := svc.RotateIP(ctx, RotationRequest{PoolID: "w", Trigger: models.TriggerTimeInterval})
	second := svc.RotateIP(ctx, RotationRequest{PoolID: "w", Trigger: models.TriggerTimeInterval})

	assert.True(t, first.Rotated)
	assert.True(t, second.Success)
	assert.False(t, second.Rotated)
	assert.Equal(t, second.OldIP, second.NewIP)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Len(t, store.Logs(), 1)
}

func TestRotateIP_ForceSkipsCheck(t *testing.T) {
	var calls int32
	srv := rotationServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]string{"newIp": "10.9.9.9"})
	})

	store := memory.NewStore()
	store.AddPool(&models.IpPool{ID: "w", Type: models.PoolTypeCloudWorker, Config: models.IpPoolConfig{WorkerURL: srv.URL}})
	svc := newTestRotationService(t, store, nil)

	res := svc.RotateIP(context.Background(), RotationRequest{PoolID: "w", Trigger: models.TriggerBatchThreshold})
	assert.False(t, res.Rotated)
	res = svc.RotateIP(context.Background(), RotationRequest{PoolID: "w", Trigger: models.TriggerBatchThreshold, Force: true})
	assert.True(t, res.Rotated)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

type fakeStrategy struct {
	ips   []string
	errs  []error
	calls int
}

func (f *fakeStrategy) Rotate(ctx context.Context, pool *models.IpPool) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.ips) {
		return f.ips[i], nil
	}
	return "", assert.AnError
}

func TestAutoRotatePools_TriggerPriority(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	stale := time.Now().Add(-3 * time.Hour)

	store := memory.NewStore()
	store.AddPool(&models.IpPool{ID: "busy", Name: "a", Type: models.PoolTypeProxyAPI, IsEnabled: true, Status: models.PoolStatusActive,
		LastRotatedAt: &stale, HealthScore: intPtr(10)})
	store.AddSession(&models.IpPoolSession{IPPoolID: "busy", PostsCount: 12, FailCount: 3, SessionStart: time.Now()})
	store.AddPool(&models.IpPool{ID: "old", Name: "b", Type: models.PoolTypeProxyAPI, IsEnabled: true, Status: models.PoolStatusActive,
		LastRotatedAt: &stale, HealthScore: intPtr(90)})
	store.AddPool(&models.IpPool{ID: "sick", Name: "c", Type: models.PoolTypeProxyAPI, IsEnabled: true, Status: models.PoolStatusActive,
		LastRotatedAt: &recent, HealthScore: intPtr(20)})
	store.AddPool(&models.IpPool{ID: "fine", Name: "d", Type: models.PoolTypeProxyAPI, IsEnabled: true, Status: models.PoolStatusActive,
		LastRotatedAt: &recent, HealthScore: intPtr(90)})

	fake := &fakeStrategy{ips: []string{"1.1.1.1", "2.2.2.2", "3.3.3.3"}}
	svc := newTestRotationService(t, store, &RotationStrategies{ProxyAPI: fake})

	results, err := svc.AutoRotatePools(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "busy", results[0].PoolID)
	assert.Equal(t, models.TriggerBatchThreshold, results[0].Trigger)
	assert.Equal(t, "Reached batch threshold of 15 posts", results[0].Reason)
	assert.Equal(t, "old", results[1].PoolID)
	assert.Equal(t, models.TriggerTimeInterval, results[1].Trigger)
	assert.Equal(t, "Exceeded 2 hours since last rotation", results[1].Reason)
	assert.Equal(t, "sick", results[2].PoolID)
	assert.Equal(t, models.TriggerHealthDegradation, results[2].Trigger)
	assert.Equal(t, "Health score dropped to 20", results[2].Reason)
	assert.Equal(t, 3, fake.calls)
}

func TestRotateWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds on a later attempt", func(t *testing.T) {
		store := memory.NewStore()
		store.AddPool(&models.IpPool{ID: "p", Type: models.PoolTypeProxyAPI, CurrentIP: "0.0.0.1"})
		fake := &fakeStrategy{errs: []error{assert.AnError}, ips: []string{"", "0.0.0.2"}}
		svc := newTestRotationService(t, store, &RotationStrategies{ProxyAPI: fake})
		sleeps := &recordedSleeps{}
		svc.sleep = func(_ context.Context, d time.Duration) error {
			sleeps.delays = append(sleeps.delays, d)
			return nil
		}

		res := svc.RotateWithBackoff(ctx, "p", 3)
		require.True(t, res.Success)
		assert.Equal(t, "0.0.0.2", res.NewIP)
		assert.Equal(t, []time.Duration{5 * time.Second}, sleeps.delays)

		logs := store.Logs()
		require.Len(t, logs, 2)
		assert.Equal(t, "Rotation attempt 1/3", logs[0].Reason)
		assert.Equal(t, "Rotation attempt 2/3", logs[1].Reason)
	})

	t.Run("exhausts attempts", func(t *testing.T) {
		store := memory.NewStore()
		store.AddPool(&models.IpPool{ID: "p", Type: models.PoolTypeProxyAPI})
		svc := newTestRotationService(t, store, &RotationStrategies{ProxyAPI: &fakeStrategy{}})
		sleeps := &recordedSleeps{}
		svc.sleep = func(_ context.Context, d time.Duration) error {
			sleeps.delays = append(sleeps.delays, d)
			return nil
		}

		res := svc.RotateWithBackoff(ctx, "p", 4)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Error)
		assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, sleeps.delays)
		assert.Len(t, store.Logs(), 4)
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		store := memory.NewStore()
		store.AddPool(&models.IpPool{ID: "p", Type: models.PoolTypeProxyAPI})
		svc := newTestRotationService(t, store, &RotationStrategies{ProxyAPI: &fakeStrategy{}})

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		res := svc.RotateWithBackoff(cctx, "p", 3)
		assert.False(t, res.Success)
		assert.Equal(t, context.Canceled.Error(), res.Error)
		assert.Len(t, store.Logs(), 1)
	})
}

func TestRotationHistory(t *testing.T) {
	store := memory.NewStore()
	store.AddPool(&models.IpPool{ID: "p", Type: models.PoolTypeProxyAPI})
	fake := &fakeStrategy{ips: []string{"a", "b", "c"}}
	svc := newTestRotationService(t, store, &RotationStrategies{ProxyAPI: fake})
	for i := 0; i < 3; i++ {
		svc.RotateIP(context.Background(), RotationRequest{PoolID: "p", Trigger: models.TriggerManual})
	}

	history, err := svc.RotationHistory(context.Background(), "p", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].NewIP)
	assert.Equal(t, "b", history[1].NewIP)
}
