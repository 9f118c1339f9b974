// Package vulkan implements the device and window collaborators of the
// rendering packages on top of vkngwrapper and SDL2. Driver objects never
// leave this package: callers see the opaque ids from package gpu.
package vulkan

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_portability_enumeration"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/vkngwrapper/minevoxel/internal/gpu"
)

var (
	ErrMissingExtension = errors.New("required vulkan extension not available")
	ErrMissingLayer     = errors.New("required vulkan layer not available")
)

var validationLayers = []string{"VK_LAYER_KHRONOS_validation"}

type InstanceOptions struct {
	ApplicationName string
	// Validation enables the Khronos validation layer and routes its
	// messages to the package logger.
	Validation bool
}

// Instance owns the Vulkan instance, the optional debug messenger and the
// window surface.
type Instance struct {
	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	surfaceDriver khr_surface.ExtensionDriver
	surface       khr_surface.Surface
}

func NewInstance(window *Window, opts InstanceOptions) (*Instance, error) {
	i := &Instance{}

	var err error
	i.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "failed to load vulkan")
	}

	err = i.createInstance(window, opts)
	if err == nil && opts.Validation {
		err = i.setupDebugMessenger()
	}
	if err == nil {
		err = i.createSurface(window)
	}
	if err != nil {
		i.Destroy()
		return nil, err
	}

	return i, nil
}

func (i *Instance) createInstance(window *Window, opts InstanceOptions) error {
	instanceOptions := core1_0.InstanceCreateInfo{
		ApplicationName:    opts.ApplicationName,
		ApplicationVersion: common.CreateVersion(1, 0, 0),
		EngineName:         "minevoxel",
		EngineVersion:      common.CreateVersion(1, 0, 0),
		APIVersion:         common.Vulkan1_2,
	}

	sdlExtensions := window.window.VulkanGetInstanceExtensions()
	extensions, _, err := i.globalDriver.AvailableExtensions()
	if err != nil {
		return errors.Wrap(err, "failed to list instance extensions")
	}

	for _, ext := range sdlExtensions {
		_, hasExt := extensions[ext]
		if !hasExt {
			return errors.Wrapf(ErrMissingExtension, "%s", ext)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext)
	}

	_, enumerationSupported := extensions[khr_portability_enumeration.ExtensionName]
	if enumerationSupported {
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, khr_portability_enumeration.ExtensionName)
		instanceOptions.Flags |= khr_portability_enumeration.InstanceCreateEnumeratePortability
	}

	if opts.Validation {
		if _, hasDebug := extensions[ext_debug_utils.ExtensionName]; !hasDebug {
			return errors.Wrapf(ErrMissingExtension, "%s", ext_debug_utils.ExtensionName)
		}
		instanceOptions.EnabledExtensionNames = append(instanceOptions.EnabledExtensionNames, ext_debug_utils.ExtensionName)

		layers, _, err := i.globalDriver.AvailableLayers()
		if err != nil {
			return errors.Wrap(err, "failed to list instance layers")
		}

		for _, layer := range validationLayers {
			_, hasValidation := layers[layer]
			if !hasValidation {
				return errors.Wrapf(ErrMissingLayer, "%s, install the LunarG Vulkan SDK or disable validation", layer)
			}
			instanceOptions.EnabledLayerNames = append(instanceOptions.EnabledLayerNames, layer)
		}

		instanceOptions.Next = debugMessengerOptions()
	}

	i.instanceDriver, _, err = i.globalDriver.CreateInstance(nil, instanceOptions)
	if err != nil {
		return errors.Wrap(err, "failed to create vulkan instance")
	}
	return nil
}

func debugMessengerOptions() ext_debug_utils.DebugUtilsMessengerCreateInfo {
	return ext_debug_utils.DebugUtilsMessengerCreateInfo{
		MessageSeverity: ext_debug_utils.SeverityError | ext_debug_utils.SeverityWarning,
		MessageType:     ext_debug_utils.TypeGeneral | ext_debug_utils.TypeValidation | ext_debug_utils.TypePerformance,
		UserCallback:    logDebug,
	}
}

func logDebug(msgType ext_debug_utils.DebugUtilsMessageTypeFlags, severity ext_debug_utils.DebugUtilsMessageSeverityFlags, data *ext_debug_utils.DebugUtilsMessengerCallbackData) bool {
	level := slog.LevelWarn
	if severity&ext_debug_utils.SeverityError != 0 {
		level = slog.LevelError
	}
	gpu.Logger().Log(context.Background(), level, data.Message, "type", msgType)
	return false
}

func (i *Instance) setupDebugMessenger() error {
	var err error
	i.debugDriver = ext_debug_utils.CreateExtensionDriverFromCoreDriver(i.instanceDriver)
	i.debugMessenger, _, err = i.debugDriver.CreateDebugUtilsMessenger(nil, debugMessengerOptions())
	if err != nil {
		return errors.Wrap(err, "failed to create debug messenger")
	}
	return nil
}

func (i *Instance) createSurface(window *Window) error {
	i.surfaceDriver = khr_surface.CreateExtensionDriverFromCoreDriver(i.instanceDriver)
	surface, err := vkng_sdl2.CreateSurface(i.instanceDriver.Instance(), i.surfaceDriver, window.window)
	if err != nil {
		return errors.Wrap(err, "failed to create window surface")
	}

	i.surface = surface
	return nil
}

func (i *Instance) Destroy() {
	if i.debugMessenger.Initialized() {
		i.debugDriver.DestroyDebugUtilsMessenger(i.debugMessenger, nil)
		i.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if i.surface.Initialized() {
		i.surfaceDriver.DestroySurface(i.surface, nil)
		i.surface = khr_surface.Surface{}
	}

	if i.instanceDriver != nil {
		i.instanceDriver.DestroyInstance(nil)
		i.instanceDriver = nil
	}
}
