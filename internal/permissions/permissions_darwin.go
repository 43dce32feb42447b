//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int checkMicrophonePermission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophonePermission() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import (
	"context"
	"time"
)

const pollInterval = 250 * time.Millisecond

const (
	PermissionNotDetermined = 0
	PermissionRestricted    = 1
	PermissionDenied        = 2
	PermissionAuthorized    = 3
)

// CheckMicrophone returns the current microphone permission status
func CheckMicrophone() int {
	return int(C.checkMicrophonePermission())
}

// AuthorizeCapture asks for audio capture access and waits for the
// answer. The system shows its prompt only while undetermined.
func AuthorizeCapture(ctx context.Context) (bool, error) {
	status := CheckMicrophone()
	if status == PermissionNotDetermined {
		C.requestMicrophonePermission()
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for status == PermissionNotDetermined {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
			status = CheckMicrophone()
		}
	}
	return status == PermissionAuthorized, nil
}
