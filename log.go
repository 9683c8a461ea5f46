// Shared logging
//
// Copyright (c) 2024, 2025  The teamchess authors
//
// This file is part of teamchess.
//
// teamchess is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License,
// version 3, as published by the Free Software Foundation.
//
// teamchess is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public
// License, version 3, along with teamchess. If not, see
// <http://www.gnu.org/licenses/>

package teamchess

import (
	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger.  Debug output is off until the
// configuration enables it.
var Log = logrus.New()

func init() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	Log.SetLevel(logrus.InfoLevel)
}
