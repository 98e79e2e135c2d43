// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface to the tensor math library used by the dispatcher
// and by the vmap batching rules.
//
// From the point of view of the batching rules a Backend is opaque: they only allocate,
// stack, move axes and copy tensors, and invoke the random kernels by family with the typed
// argument structs defined in this package. The random number generation itself (and the
// generator algorithm) is entirely up to the backend.
//
// Backends register a constructor with Register during initialization, and users create one
// with New, configured by the VMAPRAND_BACKEND environment variable or DefaultConfig.
package backends

import (
	"os"
	"slices"
	"strings"

	"github.com/gomlx/vmaprand/pkg/core/shapes"
	"github.com/gomlx/vmaprand/pkg/core/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Backend is the API that needs to be implemented by a tensor library to be used by the dispatcher.
type Backend interface {
	// Name returns the display name of the backend, including the name it is registered with.
	// E.g.: "SimpleGo (go)" for the simplego backend.
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// Capabilities returns what the backend supports.
	Capabilities() Capabilities

	// Empty allocates an uninitialized (zeroed for host backends) tensor of the given shape.
	Empty(shape shapes.Shape) (*tensors.Tensor, error)

	// Copy copies src into dst, broadcasting src over the leading axes of dst that src doesn't have.
	Copy(dst, src *tensors.Tensor) error

	// Stack stacks same-shaped tensors along a new leading axis.
	Stack(values []*tensors.Tensor) (*tensors.Tensor, error)

	// MoveAxis moves axis `from` of x to position `to`.
	MoveAxis(x *tensors.Tensor, from, to int) (*tensors.Tensor, error)

	// RandomKernels are the random number generating operations.
	RandomKernels

	// Finalize releases all the associated resources immediately, and makes the backend invalid.
	Finalize()
}

// RandomKernels are the unbatched random operations, grouped by family.
//
// Each kernel draws from args.Generator if one is given, and from the backend's default
// generator otherwise. Either way the generator state advances with every call.
type RandomKernels interface {
	// Randn returns a tensor of the given shape with values from the standard normal distribution.
	Randn(args ShapeArgs) (*tensors.Tensor, error)

	// Rand returns a tensor of the given shape with values uniformly distributed in [0, 1).
	Rand(args ShapeArgs) (*tensors.Tensor, error)

	// RandInt returns a tensor of the given shape with integers uniformly distributed in [args.Low, args.High).
	RandInt(args BoundedIntArgs) (*tensors.Tensor, error)

	// RandPerm returns a random permutation of the integers [0, args.N).
	RandPerm(args PermutationArgs) (*tensors.Tensor, error)

	// Random fills self, in place, with integers uniformly distributed in [args.From, args.To).
	// See InPlaceArgs for the defaults.
	Random(self *tensors.Tensor, args InPlaceArgs) error

	// Normal fills self, in place, with values from a normal distribution of the given mean and
	// standard deviation.
	Normal(self *tensors.Tensor, args InPlaceArgs) error
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List the registered backends.
func List() []string {
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// ConfigEnvVar is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "go") and
// "<backend_configuration>" is backend specific (e.g.: "seed=42" for the simplego backend).
const ConfigEnvVar = "VMAPRAND_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment $VMAPRAND_BACKEND is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
func New() (Backend, error) {
	config, found := os.LookupEnv(ConfigEnvVar)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// NewWithConfig takes a configurations string formated as "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "go") and
// "<backend_configuration>" is backend specific. If there is no ":", the whole config is taken
// as the backend name.
func NewWithConfig(config string) (Backend, error) {
	if len(registeredConstructors) == 0 {
		return nil, errors.New(`no registered backends -- maybe import the default one with import _ "github.com/gomlx/vmaprand/backends/simplego"?`)
	}
	backendName := firstRegistered
	var backendConfig string
	if idx := strings.Index(config, ":"); idx != -1 {
		backendName = config[:idx]
		backendConfig = config[idx+1:]
	} else if config != "" {
		backendName = config
	}
	constructor, found := registeredConstructors[backendName]
	if !found {
		return nil, errors.Errorf("can't find backend %q for configuration %q given, registered backends: %q",
			backendName, config, List())
	}
	klog.V(1).Infof("creating backend %q with configuration %q", backendName, backendConfig)
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q", backendName)
	}
	return backend, nil
}
