package native

import "fmt"

// Status is a native result code. Zero is success and every other value is a
// failure. Status implements error so a failing code can be returned as is.
type Status int32

const (
	Success                    Status = 0
	DeviceNotFound             Status = -1
	DeviceNotAvailable         Status = -2
	CompilerNotAvailable       Status = -3
	MemObjectAllocationFailure Status = -4
	OutOfResources             Status = -5
	OutOfHostMemory            Status = -6
	MemCopyOverlap             Status = -8
	BuildProgramFailure        Status = -11
	MapFailure                 Status = -12
	InvalidValue               Status = -30
	InvalidDeviceType          Status = -31
	InvalidPlatform            Status = -32
	InvalidDevice              Status = -33
	InvalidContext             Status = -34
	InvalidQueueProperties     Status = -35
	InvalidCommandQueue        Status = -36
	InvalidHostPtr             Status = -37
	InvalidMemObject           Status = -38
	InvalidBuildOptions        Status = -43
	InvalidProgram             Status = -44
	InvalidProgramExecutable   Status = -45
	InvalidKernelName          Status = -46
	InvalidKernelDefinition    Status = -47
	InvalidKernel              Status = -48
	InvalidArgIndex            Status = -49
	InvalidArgValue            Status = -50
	InvalidArgSize             Status = -51
	InvalidKernelArgs          Status = -52
	InvalidWorkDimension       Status = -53
	InvalidWorkGroupSize       Status = -54
	InvalidGlobalOffset        Status = -56
	InvalidEventWaitList       Status = -57
	InvalidEvent               Status = -58
	InvalidOperation           Status = -59
	InvalidBufferSize          Status = -61
	InvalidGlobalWorkSize      Status = -63
)

var statusNames = map[Status]string{
	Success:                    "SUCCESS",
	DeviceNotFound:             "DEVICE_NOT_FOUND",
	DeviceNotAvailable:         "DEVICE_NOT_AVAILABLE",
	CompilerNotAvailable:       "COMPILER_NOT_AVAILABLE",
	MemObjectAllocationFailure: "MEM_OBJECT_ALLOCATION_FAILURE",
	OutOfResources:             "OUT_OF_RESOURCES",
	OutOfHostMemory:            "OUT_OF_HOST_MEMORY",
	MemCopyOverlap:             "MEM_COPY_OVERLAP",
	BuildProgramFailure:        "BUILD_PROGRAM_FAILURE",
	MapFailure:                 "MAP_FAILURE",
	InvalidValue:               "INVALID_VALUE",
	InvalidDeviceType:          "INVALID_DEVICE_TYPE",
	InvalidPlatform:            "INVALID_PLATFORM",
	InvalidDevice:              "INVALID_DEVICE",
	InvalidContext:             "INVALID_CONTEXT",
	InvalidQueueProperties:     "INVALID_QUEUE_PROPERTIES",
	InvalidCommandQueue:        "INVALID_COMMAND_QUEUE",
	InvalidHostPtr:             "INVALID_HOST_PTR",
	InvalidMemObject:           "INVALID_MEM_OBJECT",
	InvalidBuildOptions:        "INVALID_BUILD_OPTIONS",
	InvalidProgram:             "INVALID_PROGRAM",
	InvalidProgramExecutable:   "INVALID_PROGRAM_EXECUTABLE",
	InvalidKernelName:          "INVALID_KERNEL_NAME",
	InvalidKernelDefinition:    "INVALID_KERNEL_DEFINITION",
	InvalidKernel:              "INVALID_KERNEL",
	InvalidArgIndex:            "INVALID_ARG_INDEX",
	InvalidArgValue:            "INVALID_ARG_VALUE",
	InvalidArgSize:             "INVALID_ARG_SIZE",
	InvalidKernelArgs:          "INVALID_KERNEL_ARGS",
	InvalidWorkDimension:       "INVALID_WORK_DIMENSION",
	InvalidWorkGroupSize:       "INVALID_WORK_GROUP_SIZE",
	InvalidGlobalOffset:        "INVALID_GLOBAL_OFFSET",
	InvalidEventWaitList:       "INVALID_EVENT_WAIT_LIST",
	InvalidEvent:               "INVALID_EVENT",
	InvalidOperation:           "INVALID_OPERATION",
	InvalidBufferSize:          "INVALID_BUFFER_SIZE",
	InvalidGlobalWorkSize:      "INVALID_GLOBAL_WORK_SIZE",
}

// String returns the symbolic name of the code, or the number for codes that
// have none (OR-combined binder results usually have none).
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int32(s))
}

func (s Status) Error() string {
	return "native: " + s.String()
}

// Err returns nil for Success and the status itself otherwise.
func (s Status) Err() error {
	if s == Success {
		return nil
	}
	return s
}

// OK reports whether s is Success.
func (s Status) OK() bool {
	return s == Success
}
