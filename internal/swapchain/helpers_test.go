package swapchain

import "strconv"

func itoa[T ~uint64](handle T) string {
	return strconv.FormatUint(uint64(handle), 10)
}
