// Copyright (c) 2025 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package verifier

import "fmt"

// Phase is the position of a verification in its state machine.
type Phase uint8

const (
	PhaseInit Phase = iota
	PhaseCheckCert
	PhaseUpdateIntermediates
	PhaseBuildAndValidateChain
	PhaseCheckUntrusted
	PhaseCheckKeySize
	PhaseExtractNames
	PhaseExtractWarnStatus
	PhaseCheckMissingCerts
	PhaseCheckWarnings
	PhaseHandleDownloadedIntermediates
	PhaseCheckHostName
	PhaseCheckTrustedForHost
	PhaseCheckNeedsInteraction
	PhaseAskingUser

	// Suspension points.
	PhaseLoadingAIACert
	PhaseLoadingCRLOrOCSP
	PhaseLoadingRepositoryCert
	PhaseLoadingUntrustedCert
	PhaseWaitForRepositoryBatch

	PhaseFinishedSuccess
	PhaseFinishedFailed
	PhaseAborted
)

var phaseNames = [...]string{
	PhaseInit:                          "init",
	PhaseCheckCert:                     "check_cert",
	PhaseUpdateIntermediates:           "update_intermediates",
	PhaseBuildAndValidateChain:         "build_and_validate_chain",
	PhaseCheckUntrusted:                "check_untrusted",
	PhaseCheckKeySize:                  "check_key_size",
	PhaseExtractNames:                  "extract_names",
	PhaseExtractWarnStatus:             "extract_warn_status",
	PhaseCheckMissingCerts:             "check_missing_certs",
	PhaseCheckWarnings:                 "check_warnings",
	PhaseHandleDownloadedIntermediates: "handle_downloaded_intermediates",
	PhaseCheckHostName:                 "check_host_name",
	PhaseCheckTrustedForHost:           "check_trusted_for_host",
	PhaseCheckNeedsInteraction:         "check_needs_interaction",
	PhaseAskingUser:                    "asking_user",
	PhaseLoadingAIACert:                "loading_aia_cert",
	PhaseLoadingCRLOrOCSP:              "loading_crl_or_ocsp",
	PhaseLoadingRepositoryCert:         "loading_repository_cert",
	PhaseLoadingUntrustedCert:          "loading_untrusted_cert",
	PhaseWaitForRepositoryBatch:        "wait_for_repository_batch",
	PhaseFinishedSuccess:               "finished_success",
	PhaseFinishedFailed:                "finished_failed",
	PhaseAborted:                       "aborted",
}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", p)
}

// Terminal reports whether no transition leaves p.
func (p Phase) Terminal() bool {
	return p == PhaseFinishedSuccess || p == PhaseFinishedFailed || p == PhaseAborted
}

// Suspending reports whether p waits for an [Event].
func (p Phase) Suspending() bool {
	switch p {
	case PhaseAskingUser, PhaseLoadingAIACert, PhaseLoadingCRLOrOCSP,
		PhaseLoadingRepositoryCert, PhaseLoadingUntrustedCert, PhaseWaitForRepositoryBatch:
		return true
	}
	return false
}
