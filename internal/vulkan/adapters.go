package vulkan

import (
	"github.com/vkngwrapper/minevoxel/internal/model"
	"github.com/vkngwrapper/minevoxel/internal/renderer"
	"github.com/vkngwrapper/minevoxel/internal/resource"
	"github.com/vkngwrapper/minevoxel/internal/systems"
)

var (
	_ renderer.Device           = (*Device)(nil)
	_ renderer.Window           = (*Window)(nil)
	_ systems.Device            = (*Device)(nil)
	_ model.Device              = (*Device)(nil)
	_ resource.TextureDevice    = (*Device)(nil)
	_ resource.DescriptorDevice = (*Device)(nil)
)
