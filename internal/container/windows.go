//go:build windows

package container

import (
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WindowsBackend contains each child in its own kernel job object with
// the kill-on-close limit set, per 4.A "family W". Grounded on the
// job-object-plus-CREATE_SUSPENDED pattern in
// other_examples/d98c9173_ormasoftchile-cli-replay__cmd-exec_windows.go.go.
type WindowsBackend struct{}

func (WindowsBackend) Spawn(spec SpawnSpec) (Handle, error) {
	cmd := exec.Command(spec.Program, spec.Args...)
	cmd.Env = spec.Env
	cmd.Dir = spec.Cwd
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_SUSPENDED | windows.CREATE_NEW_PROCESS_GROUP,
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	job, err := newJobObject()
	if err != nil {
		return nil, fmt.Errorf("create job object: %w", err)
	}

	if err := cmd.Start(); err != nil {
		job.Close()
		return nil, err
	}

	pid := cmd.Process.Pid
	// Atomicity requirement: the child was created suspended, so there
	// is no window in which it runs grandchildren before it is a member
	// of the job. Assign it now, then resume.
	if err := job.assignPID(pid); err != nil {
		_ = job.Terminate()
		job.Close()
		return nil, fmt.Errorf("assign pid %d to job: %w", pid, err)
	}
	resumeProcessThreads(uint32(pid))

	h := &windowsHandle{
		cmd:      cmd,
		pid:      pid,
		job:      job,
		stdout:   newLineScanner(stdoutPipe),
		stderr:   newLineScanner(stderrPipe),
		waitCh:   make(chan struct{}),
		exitCode: -1,
	}

	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		if err == nil {
			h.exitCode = 0
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			h.exitCode = exitErr.ExitCode()
		} else {
			h.exitCode = -1
		}
		h.mu.Unlock()
		close(h.waitCh)
	}()

	return h, nil
}

type windowsHandle struct {
	cmd      *exec.Cmd
	pid      int
	job      *jobObject
	stdout   LineScanner
	stderr   LineScanner
	waitCh   chan struct{}
	mu       sync.Mutex
	exitCode int
}

func (h *windowsHandle) PID() int                  { return h.pid }
func (h *windowsHandle) Stdout() LineScanner       { return h.stdout }
func (h *windowsHandle) Stderr() LineScanner       { return h.stderr }
func (h *windowsHandle) Wait() <-chan struct{}     { return h.waitCh }
func (h *windowsHandle) ExitStatus() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// SoftStop implements 4.A's family-W escalation: for attempts 0 through
// 3 (the first four calls), post a close message to every top-level window of every
// process in the job (falling back to message-only windows when a
// process has none); past attempt 3, escalate to a console control
// event. Order matters — top-level windows first, console event last.
func (h *windowsHandle) SoftStop(attempt int) error {
	if attempt <= 3 {
		pids, err := h.job.pids()
		if err != nil {
			return err
		}
		for _, pid := range pids {
			posted := postCloseToTopLevelWindows(pid)
			if !posted {
				postCloseToMessageOnlyWindows(pid)
			}
		}
		return nil
	}

	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(h.pid))
}

func (h *windowsHandle) HardKill() error {
	return h.job.Terminate()
}

// Dispose destroys the job, which implicitly kills every surviving
// member process via the kill-on-close limit (4.A).
func (h *windowsHandle) Dispose() error {
	return h.job.Close()
}

// --- job object plumbing ---

type jobObject struct {
	handle windows.Handle
}

func newJobObject() (*jobObject, error) {
	h, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return nil, err
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}
	if _, err := windows.SetInformationJobObject(
		h,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		windows.CloseHandle(h)
		return nil, err
	}

	return &jobObject{handle: h}, nil
}

func (j *jobObject) assignPID(pid int) error {
	proc, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(proc)
	return windows.AssignProcessToJobObject(j.handle, proc)
}

func (j *jobObject) Terminate() error {
	return windows.TerminateJobObject(j.handle, 1)
}

func (j *jobObject) Close() error {
	return windows.CloseHandle(j.handle)
}

// pids lists every process currently a member of the job, via
// QueryInformationJobObject(JobObjectBasicProcessIdList).
func (j *jobObject) pids() ([]int, error) {
	const maxProcs = 1024
	type basicProcessIDList struct {
		NumberOfAssignedProcesses uint32
		NumberOfProcessIdsInList  uint32
		ProcessIdList             [maxProcs]uintptr
	}
	var list basicProcessIDList
	var ret uint32
	err := windows.QueryInformationJobObject(
		j.handle,
		windows.JobObjectBasicProcessIdList,
		uintptr(unsafe.Pointer(&list)),
		uint32(unsafe.Sizeof(list)),
		&ret,
	)
	if err != nil {
		return nil, err
	}
	pids := make([]int, 0, list.NumberOfProcessIdsInList)
	for i := uint32(0); i < list.NumberOfProcessIdsInList; i++ {
		pids = append(pids, int(list.ProcessIdList[i]))
	}
	return pids, nil
}

func resumeProcessThreads(pid uint32) {
	snapshot, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPTHREAD, 0)
	if err != nil {
		return
	}
	defer windows.CloseHandle(snapshot)

	var te windows.ThreadEntry32
	te.Size = uint32(unsafe.Sizeof(te))

	err = windows.Thread32First(snapshot, &te)
	for err == nil {
		if te.OwnerProcessID == pid {
			if th, openErr := windows.OpenThread(windows.THREAD_SUSPEND_RESUME, false, te.ThreadID); openErr == nil {
				windows.ResumeThread(th)
				windows.CloseHandle(th)
			}
		}
		err = windows.Thread32Next(snapshot, &te)
	}
}

// --- window enumeration (user32, not wrapped by x/sys/windows) ---

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows       = user32.NewProc("EnumWindows")
	procGetWindowThreadPID = user32.NewProc("GetWindowThreadProcessId")
	procGetWindow         = user32.NewProc("GetWindow")
	procPostMessageW      = user32.NewProc("PostMessageW")
	procFindWindowExW     = user32.NewProc("FindWindowExW")
)

const (
	gwOwner      = 4
	wmClose      = 0x0010
	hwndMessage  = ^uintptr(2) // (HWND)-3, message-only window parent
)

// postCloseToTopLevelWindows posts WM_CLOSE to every top-level,
// non-owned window belonging to pid. Returns true if at least one
// window was found (the 4.A ordering: user-visible apps close first).
func postCloseToTopLevelWindows(pid int) bool {
	found := false
	cb := syscall.NewCallback(func(hwnd uintptr, _ uintptr) uintptr {
		var windowPID uint32
		procGetWindowThreadPID.Call(hwnd, uintptr(unsafe.Pointer(&windowPID)))
		if windowPID != uint32(pid) {
			return 1
		}
		owner, _, _ := procGetWindow.Call(hwnd, gwOwner)
		if owner != 0 {
			return 1
		}
		procPostMessageW.Call(hwnd, wmClose, 0, 0)
		found = true
		return 1
	})
	procEnumWindows.Call(cb, 0)
	return found
}

// postCloseToMessageOnlyWindows is the fallback for headless programs
// that only own message-only windows (parent HWND_MESSAGE).
func postCloseToMessageOnlyWindows(pid int) {
	var hwnd uintptr
	for {
		h, _, _ := procFindWindowExW.Call(hwndMessage, hwnd, 0, 0)
		if h == 0 {
			return
		}
		var windowPID uint32
		procGetWindowThreadPID.Call(h, uintptr(unsafe.Pointer(&windowPID)))
		if windowPID == uint32(pid) {
			procPostMessageW.Call(h, wmClose, 0, 0)
		}
		hwnd = h
	}
}
