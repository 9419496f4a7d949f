/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package metrics exposes Prometheus metrics for the HTTP API, the
// preference store and dashboard customization events.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "godashboard"

// Collector owns a private registry and the metric vectors.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	StoreOperations     *prometheus.CounterVec
	StoreDuration       *prometheus.HistogramVec
	Customizations      *prometheus.CounterVec
}

func New() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		StoreOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "store_operations_total",
			Help:      "Total number of preference store operations",
		}, []string{"operation", "status"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of preference store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		Customizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "customizations_total",
			Help:      "Dashboard customizations by kind",
		}, []string{"kind"}),
	}
	reg.MustRegister(c.HTTPRequestsTotal, c.HTTPRequestDuration, c.StoreOperations, c.StoreDuration, c.Customizations)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one served request. path is the route pattern.
func (c *Collector) RecordRequest(method, path string, status int, d time.Duration) {
	c.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveStore matches prefstore.Observer.
func (c *Collector) ObserveStore(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.StoreOperations.WithLabelValues(op, status).Inc()
	c.StoreDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Customized counts a layout_saved, widget_hidden or widget_shown event.
func (c *Collector) Customized(kind string) { c.Customizations.WithLabelValues(kind).Inc() }
