package main

import (
	"fmt"
	"sync"

	"github.com/ShashankTrevonix/digital-credentials-nw-credit-card/flow"
)

// FlowRegistry keeps the live wizards in process memory. Wizards own polling
// timers, so they cannot round-trip through the snapshot storage.
type FlowRegistry struct {
	mutex sync.Mutex
	flows map[string]*flow.Wizard
}

func NewFlowRegistry() *FlowRegistry {
	return &FlowRegistry{
		flows: make(map[string]*flow.Wizard),
	}
}

func (r *FlowRegistry) Add(flowId string, wizard *flow.Wizard) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.flows[flowId] = wizard
}

func (r *FlowRegistry) Get(flowId string) (*flow.Wizard, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if wizard, ok := r.flows[flowId]; ok {
		return wizard, nil
	}
	return nil, fmt.Errorf("no active flow for %s", flowId)
}

func (r *FlowRegistry) Remove(flowId string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.flows[flowId]; ok {
		delete(r.flows, flowId)
		return nil
	}
	return fmt.Errorf("no active flow for %s", flowId)
}
