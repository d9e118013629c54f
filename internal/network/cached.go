package network

import (
	"context"
	"errors"
	"time"

	"wallet-signer/internal/model"
	"wallet-signer/pkg/cache"
	"wallet-signer/pkg/logger"
	"wallet-signer/pkg/monitor"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const paramsCacheKey = "network:params"

// CachedParams 短 TTL 缓存网络参数，并发请求合并为一次拉取
type CachedParams struct {
	upstream ParamsFetcher
	cache    cache.Cache
	ttl      time.Duration
	group    singleflight.Group
}

func NewCachedParams(upstream ParamsFetcher, c cache.Cache, ttl time.Duration) *CachedParams {
	return &CachedParams{upstream: upstream, cache: c, ttl: ttl}
}

func (p *CachedParams) Params(ctx context.Context) (model.NetworkParams, error) {
	var params model.NetworkParams
	err := p.cache.Get(ctx, paramsCacheKey, &params)
	if err == nil {
		monitor.ObserveParamsCache(true)
		return params, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.Warn("params cache read failed", zap.Error(err))
	}
	monitor.ObserveParamsCache(false)

	v, err, _ := p.group.Do(paramsCacheKey, func() (interface{}, error) {
		fresh, err := p.upstream.Params(ctx)
		if err != nil {
			return model.NetworkParams{}, err
		}
		if err := p.cache.Set(ctx, paramsCacheKey, fresh, p.ttl); err != nil {
			logger.Warn("params cache write failed", zap.Error(err))
		}
		return fresh, nil
	})
	if err != nil {
		return model.NetworkParams{}, err
	}
	return v.(model.NetworkParams), nil
}

// Invalidate 丢弃缓存，下一次 Params 必定访问节点
func (p *CachedParams) Invalidate(ctx context.Context) {
	if err := p.cache.Delete(ctx, paramsCacheKey); err != nil {
		logger.Warn("params cache invalidate failed", zap.Error(err))
	}
	p.group.Forget(paramsCacheKey)
}
