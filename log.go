package ospf

import "github.com/sirupsen/logrus"

// log is the package-wide base logger. Subsystems derive a
// *logrus.Entry from it pre-populated with their own fields (area,
// lsa, neighbor) so call sites stay terse, mirroring the field-keyed
// logging style the bio-rd OSPF/ISIS daemon uses throughout its LSDB
// and flooding code.
var log = logrus.StandardLogger()

// SetLogger lets an embedding daemon point the core at its own
// configured logrus.Logger (output, level, formatter) instead of the
// package default.
func SetLogger(l *logrus.Logger) {
	log = l
}

func areaLog(areaID ID) *logrus.Entry {
	return log.WithField("area", areaID.String())
}

func lsaLog(areaID ID, h LSAHeader) *logrus.Entry {
	return areaLog(areaID).WithFields(logrus.Fields{
		"lsa_type": h.Type,
		"lsid":     h.LinkStateID.String(),
		"adv":      h.AdvertisingRouter.String(),
	})
}
