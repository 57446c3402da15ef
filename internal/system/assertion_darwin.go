//go:build darwin && cgo

package system

/*
#cgo LDFLAGS: -framework IOKit -framework CoreFoundation

#include <stdlib.h>
#include <CoreFoundation/CoreFoundation.h>
#include <IOKit/pwr_mgt/IOPMLib.h>

static IOReturn createPreventSystemSleep(const char *name, IOPMAssertionID *assertionID) {
	CFStringRef cfName = CFStringCreateWithCString(kCFAllocatorDefault, name, kCFStringEncodingUTF8);
	if (cfName == NULL) {
		return kIOReturnNoMemory;
	}

	IOReturn result = IOPMAssertionCreateWithName(
		kIOPMAssertionTypePreventSystemSleep,
		kIOPMAssertionLevelOn,
		cfName,
		assertionID
	);
	CFRelease(cfName);

	return result;
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

type darwinAsserter struct{}

// NewAsserter returns an IOKit backed Asserter.
func NewAsserter() (Asserter, error) {
	return darwinAsserter{}, nil
}

// Create takes a PreventSystemSleep assertion.
func (darwinAsserter) Create(name string) (AssertionID, error) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	var id C.IOPMAssertionID

	if status := C.createPreventSystemSleep(cname, &id); status != C.kIOReturnSuccess {
		return 0, fmt.Errorf("IOPMAssertionCreateWithName failed: 0x%x", uint32(status))
	}

	return AssertionID(id), nil
}

// Release drops the assertion.
func (darwinAsserter) Release(id AssertionID) error {
	if status := C.IOPMAssertionRelease(C.IOPMAssertionID(id)); status != C.kIOReturnSuccess {
		return fmt.Errorf("IOPMAssertionRelease failed: 0x%x", uint32(status))
	}

	return nil
}
