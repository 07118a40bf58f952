package zune

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/jochenvg/go-udev"
)

// USBAttachFunc is invoked when a device matching VendorID/ProductID
// appears or disappears on the bus. attached is false on removal.
type USBAttachFunc func(attached bool, devPath string)

// WatchUSBAttach watches udev for the device's USB vendor/product id
// appearing on the bus. It only *notices* attach/detach; opening the bulk
// endpoints themselves is the external USB transport's job (spec.md §1
// keeps that out of core scope). Blocks until ctx is cancelled.
func WatchUSBAttach(ctx context.Context, vendorID, productID string, onChange USBAttachFunc, logger *log.Logger) error {
	if logger == nil {
		logger = log.Default()
	}

	var u udev.Udev
	var monitor = u.NewMonitorFromNetlink("udev")
	if err := monitor.FilterAddMatchSubsystem("usb"); err != nil {
		return newErr(TransportFailure, "WatchUSBAttach", "FilterAddMatchSubsystem failed", err)
	}

	var deviceChan, errChan, err = monitor.DeviceChan(ctx)
	if err != nil {
		return newErr(TransportFailure, "WatchUSBAttach", "DeviceChan failed", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errChan:
			logger.Warn("usb watch: monitor error", "err", err)
		case dev := <-deviceChan:
			if dev == nil {
				continue
			}
			var vid = dev.PropertyValue("ID_VENDOR_ID")
			var pid = dev.PropertyValue("ID_MODEL_ID")
			if vid != vendorID || pid != productID {
				continue
			}

			var attached = dev.Action() != "remove"
			logger.Info("usb watch: matching device event", "action", dev.Action(), "path", dev.Syspath())
			if onChange != nil {
				onChange(attached, dev.Syspath())
			}
		}
	}
}
