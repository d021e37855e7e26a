// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package statemachine

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"k8s.io/apimachinery/pkg/api/equality"
)

// orderQueue keeps orders in arrival order. Updates keep the original position.
type orderQueue struct {
	orders *orderedmap.OrderedMap[OrderKey, Order]
}

func newOrderQueue() *orderQueue {
	return &orderQueue{orders: orderedmap.New[OrderKey, Order]()}
}

// upsert stores o and reports whether anything changed.
func (q *orderQueue) upsert(o Order) bool {
	if prev, ok := q.orders.Get(o.Key()); ok && equality.Semantic.DeepEqual(prev, o) {
		return false
	}
	q.orders.Set(o.Key(), o)
	return true
}

func (q *orderQueue) get(key OrderKey) (Order, bool) {
	return q.orders.Get(key)
}

func (q *orderQueue) remove(key OrderKey) bool {
	_, ok := q.orders.Delete(key)
	return ok
}

func (q *orderQueue) len() int {
	return q.orders.Len()
}

// first returns the earliest arrived order accepted by keep.
func (q *orderQueue) first(keep func(Order) bool) (Order, bool) {
	for pair := q.orders.Oldest(); pair != nil; pair = pair.Next() {
		if keep(pair.Value) {
			return pair.Value, true
		}
	}
	return Order{}, false
}

// each visits the orders in arrival order.
func (q *orderQueue) each(fn func(Order)) {
	for pair := q.orders.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Value)
	}
}
