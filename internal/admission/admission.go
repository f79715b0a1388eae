/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package admission bounds the number of report generations running at once.
package admission

import (
	"sync"

	"github.com/sirupsen/logrus"
)

type Controller struct {
	mu       sync.Mutex
	inFlight int
	max      int
}

// NewController returns a controller admitting at most max generations.
// A non-positive max admits nothing.
func NewController(max int) *Controller {
	if max < 0 {
		max = 0
	}
	return &Controller{max: max}
}

// TryEnter takes a slot if one is free.
func (c *Controller) TryEnter() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight >= c.max {
		return false
	}
	c.inFlight++
	return true
}

// Leave releases a slot taken by TryEnter. An unmatched call is ignored.
func (c *Controller) Leave() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inFlight == 0 {
		logrus.Warn("admission: leave called without a matching enter")
		return
	}
	c.inFlight--
}

// Enter takes a slot and returns a release func that is safe to call more
// than once. ok is false when no slot was free.
func (c *Controller) Enter() (release func(), ok bool) {
	if !c.TryEnter() {
		return func() {}, false
	}
	var once sync.Once
	return func() { once.Do(c.Leave) }, true
}

func (c *Controller) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

func (c *Controller) Max() int {
	return c.max
}
