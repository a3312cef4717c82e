package netlink

import "golang.org/x/sys/unix"

// Netlink message types and flags this package consumes, aliased from
// golang.org/x/sys/unix for readability at call sites.
const (
	rtmNewLink  = unix.RTM_NEWLINK
	rtmDelLink  = unix.RTM_DELLINK
	rtmGetLink  = unix.RTM_GETLINK
	rtmNewAddr  = unix.RTM_NEWADDR
	rtmDelAddr  = unix.RTM_DELADDR
	rtmGetAddr  = unix.RTM_GETADDR
	rtmNewRoute = unix.RTM_NEWROUTE
	rtmDelRoute = unix.RTM_DELROUTE
	rtmGetRoute = unix.RTM_GETROUTE

	nlmsgError = unix.NLMSG_ERROR
	nlmsgDone  = unix.NLMSG_DONE

	flagRequestDump = unix.NLM_F_REQUEST | unix.NLM_F_DUMP

	flagIFFUp      = unix.IFF_UP
	flagIFFRunning = unix.IFF_RUNNING

	attrIFAAddress = unix.IFA_ADDRESS
	attrIFALocal   = unix.IFA_LOCAL
	attrIFLAIfname = unix.IFLA_IFNAME
	attrRTADst     = unix.RTA_DST
	attrRTAOif     = unix.RTA_OIF

	familyInet  = unix.AF_INET
	familyInet6 = unix.AF_INET6

	// multicastGroups is the set of groups bound at socket setup time,
	// per spec.md §6: link, IPv4/IPv6 address and route changes, and
	// IPv4/IPv6 multicast-route changes.
	multicastGroups = unix.RTMGRP_LINK |
		unix.RTMGRP_IPV4_IFADDR | unix.RTMGRP_IPV6_IFADDR |
		unix.RTMGRP_IPV4_ROUTE | unix.RTMGRP_IPV6_ROUTE |
		unix.RTMGRP_IPV4_MROUTE | unix.RTMGRP_IPV6_MROUTE
)
