package models

// ForwarderWork is one forwarder's share of a job: its raft sub-list and
// the CCD sub-list for each of those rafts, matched by position.
type ForwarderWork struct {
	Rafts    []string
	CcdLists [][]string
}

// WorkAssignment maps each forwarder name to its share of the job's rafts
// and raft CCD lists.
type WorkAssignment map[string]ForwarderWork

// DivideWork splits rafts (and their parallel raft_ccd_list entries)
// across forwarders, grounded on the original source's
// ArchiveDevice.divide_work:
//
//   - a single forwarder gets every raft;
//   - when there are no more rafts than forwarders, the first len(rafts)
//     forwarders each get exactly one raft;
//   - otherwise rafts are split floor(len(rafts)/len(forwarders)) per
//     forwarder, contiguously, with any remainder appended to the first
//     forwarder's share.
//
// The original Python built the remainder slice by appending to an
// undefined tmp_list instead of the loop's tmp_raft_list, a bug that only
// surfaced when the raft count did not divide evenly across forwarders.
// This always appends the remainder to the correctly-built slice for the
// first forwarder.
func DivideWork(forwarders []string, rafts []string, raftCcdList [][]string) WorkAssignment {
	assignment := make(WorkAssignment, len(forwarders))
	n := len(forwarders)
	if n == 0 {
		return assignment
	}

	ccdFor := func(i int) []string {
		if i < len(raftCcdList) {
			return raftCcdList[i]
		}
		return nil
	}

	if n == 1 {
		assignment[forwarders[0]] = forwarderWorkFor(rafts, raftCcdList)
		return assignment
	}

	total := len(rafts)
	if total <= n {
		for i := 0; i < total; i++ {
			assignment[forwarders[i]] = ForwarderWork{
				Rafts:    []string{rafts[i]},
				CcdLists: [][]string{ccdFor(i)},
			}
		}
		for i := total; i < n; i++ {
			assignment[forwarders[i]] = ForwarderWork{}
		}
		return assignment
	}

	perForwarder := total / n
	remainder := total % n

	offset := 0
	for i, fwd := range forwarders {
		count := perForwarder
		if i == 0 {
			count += remainder
		}
		tmpRafts := make([]string, 0, count)
		tmpCcds := make([][]string, 0, count)
		for j := 0; j < count && offset < total; j++ {
			tmpRafts = append(tmpRafts, rafts[offset])
			tmpCcds = append(tmpCcds, ccdFor(offset))
			offset++
		}
		assignment[fwd] = ForwarderWork{Rafts: tmpRafts, CcdLists: tmpCcds}
	}

	return assignment
}

func forwarderWorkFor(rafts []string, raftCcdList [][]string) ForwarderWork {
	work := ForwarderWork{
		Rafts:    append([]string(nil), rafts...),
		CcdLists: make([][]string, len(rafts)),
	}
	for i := range rafts {
		if i < len(raftCcdList) {
			work.CcdLists[i] = append([]string(nil), raftCcdList[i]...)
		}
	}
	return work
}

// RaftDictToLists converts a raft-name -> CCD-list map into two
// parallel, order-matched slices suitable for the wire protocol's
// RAFT_LIST / RAFT_CCD_LIST fields.
func RaftDictToLists(raftDict map[string][]string) (raftList []string, ccdList [][]string) {
	raftList = make([]string, 0, len(raftDict))
	ccdList = make([][]string, 0, len(raftDict))
	for raft, ccds := range raftDict {
		raftList = append(raftList, raft)
		ccdList = append(ccdList, ccds)
	}
	return raftList, ccdList
}
