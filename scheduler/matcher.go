// Copyright (c) 2019 The Gantry Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package scheduler

import (
	mesos "github.com/mesos/mesos-go/api/v0/mesosproto"
	log "github.com/sirupsen/logrus"

	"github.com/gantry-ci/gantry/agent"
)

// Resource names recognized in offers. Disk and ports are advertised by
// most hosts but agent tasks never reserve them.
const (
	_cpusName  = "cpus"
	_memName   = "mem"
	_diskName  = "disk"
	_portsName = "ports"
)

// matches reports whether the offer can host the requested agent. The
// requested memory is inflated by the JVM overhead factor before comparing,
// the same figure later reserved on the launched task. Malformed offers
// degrade to no-match, never to a failed scheduling round.
func matches(offer *mesos.Offer, spec agent.Spec) bool {
	// Scalar accumulation with -1 as the "never seen" sentinel, so an
	// offer lacking a resource fails the numeric test naturally.
	cpus := -1.0
	mem := -1.0

	for _, resource := range offer.GetResources() {
		switch resource.GetName() {
		case _cpusName:
			if resource.GetType() == mesos.Value_SCALAR {
				cpus = resource.GetScalar().GetValue()
			} else {
				log.WithField("type", resource.GetType().String()).
					Error("cpus resource in offer was not a scalar")
			}
		case _memName:
			if resource.GetType() == mesos.Value_SCALAR {
				mem = resource.GetScalar().GetValue()
			} else {
				log.WithField("type", resource.GetType().String()).
					Error("mem resource in offer was not a scalar")
			}
		case _diskName:
			log.Debug("Ignoring disk resources from offer")
		case _portsName:
			log.Debug("Ignoring ports resources from offer")
		default:
			log.WithField("name", resource.GetName()).
				Warn("Ignoring unknown resource type from offer")
		}
	}

	if cpus < 0 {
		log.Error("No cpus resource present in offer")
	}
	if mem < 0 {
		log.Error("No mem resource present in offer")
	}

	requestedCPUs := spec.CPUs
	requestedMem := reservedMem(spec.MemMB)

	if requestedCPUs <= cpus && requestedMem <= mem &&
		attributesMatch(offer, spec.Attributes) {
		return true
	}

	log.WithFields(log.Fields{
		"offer_id":       offer.GetId().GetValue(),
		"host":           offer.GetHostname(),
		"requested_cpus": requestedCPUs,
		"requested_mem":  requestedMem,
		"offered_cpus":   cpus,
		"offered_mem":    mem,
		"attributes":     spec.Attributes,
	}).Debug("Offer not sufficient for agent request")
	return false
}

// attributesMatch reports whether the offer advertises every required
// attribute key with exactly the required text value. An absent or empty
// requirement set accepts any host. Attribute values are compared as text;
// no pattern or range matching.
func attributesMatch(offer *mesos.Offer, required map[string]string) bool {
	if len(required) == 0 {
		return true
	}

	advertised := make(map[string]string, len(offer.GetAttributes()))
	for _, attribute := range offer.GetAttributes() {
		advertised[attribute.GetName()] = attribute.GetText().GetValue()
	}

	for key, want := range required {
		got, ok := advertised[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}
