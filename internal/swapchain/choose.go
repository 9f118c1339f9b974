package swapchain

import (
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
)

// anyExtent is the width reported by surfaces that let the swapchain pick its
// own extent.
const anyExtent = -1

var preferredSurfaceFormat = khr_surface.SurfaceFormat{
	Format:     core1_0.FormatB8G8R8A8SRGB,
	ColorSpace: khr_surface.ColorSpaceSRGBNonlinear,
}

var depthFormatCandidates = []core1_0.Format{
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

func chooseSurfaceFormat(available []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range available {
		if format.Format == preferredSurfaceFormat.Format && format.ColorSpace == preferredSurfaceFormat.ColorSpace {
			return format
		}
	}

	return available[0]
}

// choosePresentMode returns preferred when the surface offers it. FIFO is
// the only mode every surface must support, so it is the fallback.
func choosePresentMode(available []khr_surface.PresentMode, preferred khr_surface.PresentMode) khr_surface.PresentMode {
	for _, mode := range available {
		if mode == preferred {
			return mode
		}
	}

	return khr_surface.PresentModeFIFO
}

func chooseExtent(capabilities khr_surface.SurfaceCapabilities, window core1_0.Extent2D) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != anyExtent {
		return capabilities.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(window.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(window.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func chooseImageCount(capabilities khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
