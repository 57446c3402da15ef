//go:build darwin && cgo

package system

/*
#cgo LDFLAGS: -framework IOKit -framework CoreFoundation

#include <CoreFoundation/CoreFoundation.h>
#include <IOKit/IOKitLib.h>
#include <IOKit/ps/IOPowerSources.h>
#include <IOKit/ps/IOPSKeys.h>

static io_service_t copyRootDomain(void) {
	return IOServiceGetMatchingService(MACH_PORT_NULL, IOServiceMatching("IOPMrootDomain"));
}

static void releaseService(io_service_t service) {
	if (service != 0) {
		IOObjectRelease(service);
	}
}

// readPowerSources fills onAC and batteryPercent from a single power sources
// snapshot. batteryPercent is -1 when the first source reports no capacity.
static void readPowerSources(int *onAC, int *batteryPercent) {
	*onAC = 0;
	*batteryPercent = -1;

	CFTypeRef info = IOPSCopyPowerSourcesInfo();
	if (info == NULL) {
		return;
	}

	CFStringRef type = IOPSGetProvidingPowerSourceType(info);
	if (type != NULL && CFStringCompare(type, CFSTR(kIOPSACPowerValue), 0) == kCFCompareEqualTo) {
		*onAC = 1;
	}

	CFArrayRef list = IOPSCopyPowerSourcesList(info);
	if (list != NULL) {
		if (CFArrayGetCount(list) > 0) {
			CFDictionaryRef desc = IOPSGetPowerSourceDescription(info, CFArrayGetValueAtIndex(list, 0));
			if (desc != NULL) {
				CFTypeRef value = CFDictionaryGetValue(desc, CFSTR(kIOPSCurrentCapacityKey));
				int percent = 0;
				if (value != NULL && CFGetTypeID(value) == CFNumberGetTypeID() &&
					CFNumberGetValue((CFNumberRef)value, kCFNumberIntType, &percent)) {
					*batteryPercent = percent;
				}
			}
		}
		CFRelease(list);
	}

	CFRelease(info);
}

// readClamshell returns 1 only when AppleClamshellState is a true boolean.
static int readClamshell(io_service_t rootDomain) {
	if (rootDomain == 0) {
		return 0;
	}

	CFTypeRef prop = IORegistryEntryCreateCFProperty(rootDomain, CFSTR("AppleClamshellState"), kCFAllocatorDefault, 0);
	if (prop == NULL) {
		return 0;
	}

	int closed = CFGetTypeID(prop) == CFBooleanGetTypeID() && CFBooleanGetValue((CFBooleanRef)prop);
	CFRelease(prop);

	return closed;
}
*/
import "C"

import (
	"sync"

	"github.com/oshokin/nosleep/internal/domain/power"
)

// darwinReader keeps the root domain service so a lid read is a property lookup.
type darwinReader struct {
	mu         sync.Mutex
	rootDomain C.io_service_t
}

// NewReader returns an IOKit backed Reader.
func NewReader() (Reader, error) {
	return new(darwinReader), nil
}

// Read takes a fresh snapshot.
func (r *darwinReader) Read() power.State {
	var onAC, battery C.int

	C.readPowerSources(&onAC, &battery)

	r.mu.Lock()
	if r.rootDomain == 0 {
		r.rootDomain = C.copyRootDomain()
	}

	lidClosed := C.readClamshell(r.rootDomain) != 0
	r.mu.Unlock()

	return power.NewState(onAC != 0, lidClosed, int(battery), battery >= 0)
}

// Close releases the root domain service.
func (r *darwinReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	C.releaseService(r.rootDomain)
	r.rootDomain = 0
}
