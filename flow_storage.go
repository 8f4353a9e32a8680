package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type InMemoryFlowStorage struct {
	FlowMap map[string]string
	mutex   sync.Mutex
}

func NewInMemoryFlowStorage() *InMemoryFlowStorage {
	return &InMemoryFlowStorage{
		FlowMap: make(map[string]string),
	}
}

type RedisFlowStorage struct {
	client    *redis.Client
	namespace string
}

func NewRedisFlowStorage(client *redis.Client, namespace string) *RedisFlowStorage {
	return &RedisFlowStorage{client: client, namespace: namespace}
}

// Should be safe to use in concurreny
type FlowStorage interface {
	// Store the serialized flow snapshot for the given flow id.
	// Should not return an error when the value already exists,
	// it should just update in that case.
	StoreFlow(flowId string, snapshot string) error

	// Should retrieve the snapshot for the given flow id
	// and return an error in any case where it fails to do so.
	RetrieveFlow(flowId string) (string, error)

	// Should remove the snapshot and return an error if it fails to do so.
	// The value not being there should also be considered an error.
	RemoveFlow(flowId string) error
}

// ------------------------------------------------------------------------------

func createKey(namespace, flowId string) string {
	return fmt.Sprintf("%s:flow:%s", namespace, flowId)
}

const Timeout time.Duration = 24 * time.Hour

func (s *RedisFlowStorage) StoreFlow(flowId string, snapshot string) error {
	ctx := context.Background()
	return s.client.Set(ctx, createKey(s.namespace, flowId), snapshot, Timeout).Err()
}

func (s *RedisFlowStorage) RetrieveFlow(flowId string) (string, error) {
	ctx := context.Background()
	return s.client.Get(ctx, createKey(s.namespace, flowId)).Result()
}

func (s *RedisFlowStorage) RemoveFlow(flowId string) error {
	ctx := context.Background()
	return s.client.Del(ctx, createKey(s.namespace, flowId)).Err()
}

// ------------------------------------------------------------------------------

func (s *InMemoryFlowStorage) StoreFlow(flowId, snapshot string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.FlowMap[flowId] = snapshot
	return nil
}

func (s *InMemoryFlowStorage) RetrieveFlow(flowId string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if snapshot, ok := s.FlowMap[flowId]; ok {
		return snapshot, nil
	} else {
		return "", fmt.Errorf("failed to find flow for %s", flowId)
	}
}

func (s *InMemoryFlowStorage) RemoveFlow(flowId string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.FlowMap[flowId]; ok {
		delete(s.FlowMap, flowId)
		return nil
	} else {
		return fmt.Errorf("failed to remove flow for %s, because it wasn't there", flowId)
	}
}
